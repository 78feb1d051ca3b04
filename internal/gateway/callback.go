package gateway

import (
	"crypto/subtle"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Plain-text acknowledgements mandated by the gateway wire protocol.
const (
	// HandshakeAck answers an nbcb=1 token probe.
	HandshakeAck = "CBTOKEN:MPSTATOK"
	// Ack confirms a processed webhook delivery.
	Ack = "OK"
)

// Gateway status codes on inbound results.
const (
	statusCodeSuccess = "00"
	statusCodeFailed  = "11"
	statusCodePending = "22"
)

// Status is the mapped outcome of an inbound gateway result.
type Status int

const (
	StatusFailed Status = iota
	StatusSuccess
	StatusPending
)

// CallbackFields are the raw form fields the gateway posts back on both the
// browser return and the server-to-server webhook.
type CallbackFields struct {
	OrderID   string
	Status    string
	TranID    string
	Amount    string
	Currency  string
	Domain    string
	PayDate   string
	AppCode   string
	SKey      string
	ErrorCode string
	ErrorDesc string
	NBCB      string
}

// ParseCallback extracts the gateway result fields from a form submission.
func ParseCallback(values url.Values) CallbackFields {
	return CallbackFields{
		OrderID:   strings.TrimSpace(values.Get("orderid")),
		Status:    strings.TrimSpace(values.Get("status")),
		TranID:    strings.TrimSpace(values.Get("tranID")),
		Amount:    strings.TrimSpace(values.Get("amount")),
		Currency:  strings.TrimSpace(values.Get("currency")),
		Domain:    strings.TrimSpace(values.Get("domain")),
		PayDate:   strings.TrimSpace(values.Get("paydate")),
		AppCode:   strings.TrimSpace(values.Get("appcode")),
		SKey:      strings.TrimSpace(values.Get("skey")),
		ErrorCode: strings.TrimSpace(values.Get("error_code")),
		ErrorDesc: strings.TrimSpace(values.Get("error_desc")),
		NBCB:      strings.TrimSpace(values.Get("nbcb")),
	}
}

// IsHandshake reports whether the delivery is a token probe that must be
// acknowledged without touching any booking state.
func (f CallbackFields) IsHandshake() bool {
	return f.NBCB == "1"
}

// MappedStatus folds the gateway status code into the settlement outcome.
// Unknown codes are treated as failures.
func (f CallbackFields) MappedStatus() Status {
	switch f.Status {
	case statusCodeSuccess:
		return StatusSuccess
	case statusCodePending:
		return StatusPending
	case statusCodeFailed:
		return StatusFailed
	default:
		return StatusFailed
	}
}

// PaidAt parses the gateway pay date, falling back to now on malformed input.
func (f CallbackFields) PaidAt(now time.Time) time.Time {
	parsed, err := time.Parse("2006-01-02 15:04:05", f.PayDate)
	if err != nil {
		return now
	}
	return parsed.UTC()
}

// VerifyCallback authenticates an inbound result against the merchant
// secret: pre = md5(tranID+orderid+status+domain+amount), expected =
// md5(paydate+domain+pre+appcode+secret). Constant-time compare against the
// delivered skey.
func (a *Adapter) VerifyCallback(f CallbackFields, secretKey string) error {
	if strings.TrimSpace(secretKey) == "" {
		return ErrMissingCredentials
	}

	pre := md5hex(f.TranID + f.OrderID + f.Status + f.Domain + f.Amount)
	expected := md5hex(f.PayDate + f.Domain + pre + f.AppCode + secretKey)

	delivered := strings.ToLower(strings.TrimSpace(f.SKey))
	if subtle.ConstantTimeCompare([]byte(expected), []byte(delivered)) != 1 {
		a.log.Warn("gateway signature mismatch", zap.String("orderid", f.OrderID))
		return ErrSignatureMismatch
	}
	return nil
}
