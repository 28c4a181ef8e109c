package main

import (
	"callagent-platform/internal/httpapi"
	"callagent-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		tiers := v1.Group("/pricing")
		{
			tiers.GET("/tiers", h.ListTiers)
			tiers.GET("/quote", h.GetQuote)
		}

		subs := v1.Group("/subscriptions")
		{
			subs.POST("", rbac.RequireAnyRole(rbac.RoleAdmin), h.CreateSubscription)
			subs.GET("/:client_id", rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleAnalyst), h.GetSubscriptionStatus)
			subs.PATCH("/:client_id/status", rbac.RequireAnyRole(rbac.RoleAdmin), h.SetSubscriptionStatus)
		}

		calls := v1.Group("/calls")
		{
			calls.POST("", rbac.RequireAnyRole(rbac.RoleAgent), h.PlaceCall)
			calls.POST("/:call_id/cancel", rbac.RequireAnyRole(rbac.RoleAgent), h.CancelCall)
			calls.GET("/history", rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleAnalyst), h.GetHistory)
			calls.GET("/:call_id", rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleAnalyst), h.GetCall)
		}

		v1.GET("/agents/:agent_id/performance", rbac.RequireAnyRole(rbac.RoleAnalyst), h.GetAgentPerformance)
		v1.GET("/analytics", rbac.RequireAnyRole(rbac.RoleAnalyst), h.GetAnalytics)
	}
}
