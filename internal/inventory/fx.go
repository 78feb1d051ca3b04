package inventory

import (
	"github.com/viharalabs/templedesk/internal/inventory/service"
	"go.uber.org/fx"
)

var Module = fx.Module("inventory.service",
	fx.Provide(service.NewService),
)
