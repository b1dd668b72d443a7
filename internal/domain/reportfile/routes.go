package reportfile

import "github.com/gin-gonic/gin"

// RegisterRoutes registers the report-file endpoints.
func RegisterRoutes(r *gin.RouterGroup, h *Handler) {
	reports := r.Group("/reports")
	{
		reports.POST("", h.Upload)
		reports.GET("", h.ListMy)
		reports.GET("/:id/preview", h.Preview)
		reports.GET("/:id/preview-data", h.PreviewData)
		reports.GET("/:id/download", h.Download)
		reports.GET("/:id/metadata", h.Metadata)
		reports.DELETE("/:id", h.Delete)
	}
}

// RegisterLocalFileRoutes registers the signed-download endpoint. Only
// wired when the local backend is selected.
func RegisterLocalFileRoutes(r *gin.RouterGroup, h *LocalFileHandler) {
	r.GET("/files/*key", h.Serve)
}
