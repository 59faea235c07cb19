package controllers_fx

import (
	"go.uber.org/fx"
	"sajupia/internal/api/controllers"
)

var Module = fx.Options(
	fx.Provide(controllers.NewAccountController),
	fx.Provide(controllers.NewSubscriptionController),
	fx.Provide(controllers.NewPaymentController),
	fx.Provide(controllers.NewTestController),
	fx.Provide(controllers.NewCronController),
	fx.Provide(controllers.NewHealthController))
