package handler

import "github.com/gin-gonic/gin"

// Register mounts every route on the router.
func (h *Handler) Register(router *gin.Engine) {
	router.GET("/health", h.HealthCheck)

	api := router.Group("/api")
	{
		api.GET("/state", h.State)
		api.GET("/models", h.ListModels)
		api.PUT("/model", h.SetModel)

		api.POST("/images", h.UploadImage)
		api.POST("/images/s3", h.ImportFromS3)
		api.GET("/images", h.ListImages)
		api.DELETE("/images/:id", h.RemoveImage)
		api.GET("/images/:id/regions", h.Regions)
		api.DELETE("/images/:id/regions", h.ClearRegions)
		api.PUT("/images/:id/regions/:rid/label", h.SetRegionLabel)

		api.PUT("/display/:id", h.Display)
		api.PUT("/mode", h.SetMode)
		api.PUT("/zoom", h.SetZoom)
		api.PUT("/default-label", h.SetDefaultLabel)
		api.POST("/pointer/:action", h.Pointer)
		api.POST("/selection/bulk", h.BulkAction)

		api.POST("/undo", h.Undo)
		api.POST("/redo", h.Redo)

		api.POST("/detect", h.Detect)
		api.POST("/detect/all", h.DetectAll)

		api.GET("/export/:format", h.DownloadExport)
		api.POST("/export/:format", h.SaveExport)
	}
}
