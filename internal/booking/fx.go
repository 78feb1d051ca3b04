package booking

import (
	"github.com/viharalabs/templedesk/internal/booking/repository"
	"github.com/viharalabs/templedesk/internal/booking/service"
	"go.uber.org/fx"
)

var Module = fx.Module("booking",
	fx.Provide(
		repository.NewRepository,
		service.NewService,
	),
)
