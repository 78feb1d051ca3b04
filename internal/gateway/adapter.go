// Package gateway implements the client-side protocol for the hosted
// payment page: signing outbound redirect payloads and verifying inbound
// callback/webhook results. The digest algorithm is fixed by the gateway's
// wire format and must match it bit-for-bit.
package gateway

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/viharalabs/templedesk/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrMissingCredentials = errors.New("missing_gateway_credentials")
	ErrInvalidOrderID     = errors.New("invalid_gateway_order_id")
	ErrInvalidAmount      = errors.New("invalid_gateway_amount")
	ErrSignatureMismatch  = errors.New("gateway_signature_mismatch")
)

type Params struct {
	fx.In

	Cfg config.Config
	Log *zap.Logger
}

// Adapter builds signed redirect payloads and verifies signed results.
// Merchant credentials are passed per call; they belong to payment modes.
type Adapter struct {
	gw         config.GatewayConfig
	production bool
	log        *zap.Logger
}

func NewAdapter(p Params) *Adapter {
	return &Adapter{
		gw:         p.Cfg.Gateway,
		production: p.Cfg.IsProduction(),
		log:        p.Log.Named("gateway.adapter"),
	}
}

// Credentials identify one merchant account at the gateway. The verify key
// signs outbound requests; the secret key authenticates inbound results.
type Credentials struct {
	MerchantID string
	VerifyKey  string
	SecretKey  string
}

type RedirectRequest struct {
	Credentials Credentials
	OrderID     string
	Amount      decimal.Decimal
	BillName    string
	BillEmail   string
	BillMobile  string
	BillDesc    string
}

// Redirect is the signed form payload the browser posts to the gateway.
type Redirect struct {
	URL    string            `json:"url"`
	Fields map[string]string `json:"fields"`
}

// FormatAmount renders an amount the way the gateway hashes it: fixed two
// decimal places.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// BuildRedirect assembles and signs the outbound payment request.
func (a *Adapter) BuildRedirect(req RedirectRequest) (Redirect, error) {
	merchantID := strings.TrimSpace(req.Credentials.MerchantID)
	verifyKey := strings.TrimSpace(req.Credentials.VerifyKey)
	if merchantID == "" || verifyKey == "" {
		return Redirect{}, ErrMissingCredentials
	}
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return Redirect{}, ErrInvalidOrderID
	}
	if req.Amount.Sign() <= 0 {
		return Redirect{}, ErrInvalidAmount
	}

	amount := FormatAmount(req.Amount)
	fields := map[string]string{
		"merchant_id": merchantID,
		"orderid":     orderID,
		"amount":      amount,
		"currency":    a.gw.Currency,
		"bill_name":   strings.TrimSpace(req.BillName),
		"bill_email":  strings.TrimSpace(req.BillEmail),
		"bill_mobile": strings.TrimSpace(req.BillMobile),
		"bill_desc":   strings.TrimSpace(req.BillDesc),
		"country":     a.gw.Country,
		"returnurl":   a.gw.ReturnURL,
		"callbackurl": a.gw.CallbackURL,
		"cancelurl":   a.gw.CancelURL,
		"langcode":    a.gw.LangCode,
		"vcode":       SignRequest(amount, merchantID, orderID, verifyKey),
	}

	a.log.Info("built gateway redirect",
		zap.String("orderid", orderID),
		zap.String("amount", amount),
	)

	return Redirect{
		URL:    a.gw.EndpointURL + merchantID,
		Fields: fields,
	}, nil
}

// SignRequest computes the outbound request signature:
// md5(amount + merchantID + orderID + verifyKey), lowercase hex.
func SignRequest(amount, merchantID, orderID, verifyKey string) string {
	return md5hex(amount + merchantID + orderID + verifyKey)
}

func md5hex(input string) string {
	sum := md5.Sum([]byte(input))
	return hex.EncodeToString(sum[:])
}

// Module provides the adapter.
var Module = fx.Module("gateway.adapter",
	fx.Provide(NewAdapter),
)
