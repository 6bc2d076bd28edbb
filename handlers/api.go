package handlers

import (
	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, api *API) {
	e.POST("/v1/compile", api.CompileHandler)
	e.POST("/v1/cases", api.SubmitCaseHandler)
	e.GET("/v1/status/:submission_id", api.SubmissionStatusHandler)
	e.POST("/v1/retry", api.SendSignalHandler)
	e.GET("/v1/history/:workflow_id", api.WorkflowActivityHistoryHandler)
}
