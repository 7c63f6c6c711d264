package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"mega-get-server/internal/domain"
	"mega-get-server/internal/environment"
	"mega-get-server/internal/megacmd"
	"mega-get-server/internal/poller"
	"mega-get-server/internal/service"
	"mega-get-server/internal/storage"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	downloads service.DownloadService
	transfers *poller.Poller
	client    *megacmd.Client
	users     service.UserService
	storage   storage.Service

	bucket      string
	keyPrefix   string
	downloadDir string
	jwtSecret   string
	tokenTTL    time.Duration
	logger      *logrus.Logger
}

type HandlerConfig struct {
	Downloads   service.DownloadService
	Transfers   *poller.Poller
	Client      *megacmd.Client
	Users       service.UserService
	Storage     storage.Service
	Bucket      string
	KeyPrefix   string
	DownloadDir string
	JWTSecret   string
	TokenTTL    time.Duration
	Logger      *logrus.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Handler{
		downloads:   cfg.Downloads,
		transfers:   cfg.Transfers,
		client:      cfg.Client,
		users:       cfg.Users,
		storage:     cfg.Storage,
		bucket:      cfg.Bucket,
		keyPrefix:   cfg.KeyPrefix,
		downloadDir: cfg.DownloadDir,
		jwtSecret:   strings.TrimSpace(cfg.JWTSecret),
		tokenTTL:    cfg.TokenTTL,
		logger:      cfg.Logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	api := router.Group("/api")
	api.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api.POST("/auth/register", h.register)
	api.POST("/auth/login", h.login)

	protected := api.Group("")
	// Auth is opt-in: without a JWT secret the API stays open, matching the
	// original single-user deployment.
	if h.jwtSecret != "" {
		protected.Use(h.authMiddleware())
	}
	{
		protected.POST("/downloads", h.submitDownload)
		protected.GET("/transfers", h.listTransfers)
		protected.POST("/transfers/:tag/actions/:action", h.transferAction)
		protected.GET("/history", h.listHistory)
		protected.DELETE("/history", h.clearHistory)
		protected.GET("/submissions", h.listSubmissions)
		protected.GET("/system", h.systemInfo)
		protected.GET("/storage/objects", h.listObjects)
		protected.POST("/storage/mirror", h.mirrorDownloads)
		protected.DELETE("/storage/prefix", h.deletePrefix)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type submitDownloadRequest struct {
	URL string `json:"url" binding:"required"`
}

func (h *Handler) submitDownload(c *gin.Context) {
	var req submitDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub, err := h.downloads.Submit(c.Request.Context(), req.URL)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrEmptyURL) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, submissionToResponse(*sub))
}

func (h *Handler) listTransfers(c *gin.Context) {
	snap := h.transfers.Snapshot()

	resp := SnapshotResponse{
		Transfers:   make([]TransferResponse, len(snap.Transfers)),
		Raw:         snap.Raw,
		ParseFailed: snap.ParseFailed,
		Messages:    snap.Messages,
		ServerReady: snap.ServerReady,
	}
	for i := range snap.Transfers {
		resp.Transfers[i] = transferToResponse(snap.Transfers[i])
	}
	if !snap.UpdatedAt.IsZero() {
		v := snap.UpdatedAt.Format(time.RFC3339)
		resp.UpdatedAt = &v
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) transferAction(c *gin.Context) {
	action := domain.TransferAction(c.Param("action"))
	if !action.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action, want cancel|pause|resume"})
		return
	}
	tag := c.Param("tag")

	res, err := h.client.Action(c.Request.Context(), action, tag)
	if err != nil {
		// Launch failure: surfaced in the message log, reported, not fatal.
		h.transfers.AppendMessage(fmt.Sprintf("✗ %s failed: %v", action, err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	if out := strings.TrimSpace(res.Stdout); out != "" {
		h.transfers.AppendMessage(out)
	}
	if errText := strings.TrimSpace(res.Stderr); errText != "" && !res.Ok() {
		h.transfers.AppendMessage(errText)
	} else {
		h.transfers.AppendMessage(fmt.Sprintf("%s command sent for transfer %s", capitalize(string(action)), tag))
	}

	c.JSON(http.StatusOK, gin.H{"exit_code": res.ExitCode})
}

func (h *Handler) listHistory(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"urls": h.downloads.History()})
}

func (h *Handler) clearHistory(c *gin.Context) {
	if err := h.downloads.ClearHistory(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

func (h *Handler) listSubmissions(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	subs, err := h.downloads.Submissions(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]SubmissionResponse, len(subs))
	for i := range subs {
		resp[i] = submissionToResponse(subs[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) systemInfo(c *gin.Context) {
	c.JSON(http.StatusOK, environment.CollectSystemInfo(h.downloadDir))
}

func (h *Handler) listObjects(c *gin.Context) {
	if h.storage == nil || h.bucket == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "storage service not configured"})
		return
	}

	prefix := c.Query("prefix")
	objects, err := h.storage.ListObjects(c.Request.Context(), h.bucket, prefix)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]StorageObjectResponse, len(objects))
	for i := range objects {
		resp[i] = objectToResponse(objects[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) mirrorDownloads(c *gin.Context) {
	if h.storage == nil || h.bucket == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "storage service not configured"})
		return
	}

	prefix := strings.Trim(h.keyPrefix, "/")
	stamp := time.Now().UTC().Format("20060102-150405")
	if prefix == "" {
		prefix = stamp
	} else {
		prefix = prefix + "/" + stamp
	}

	dest, err := h.storage.UploadDirectory(c.Request.Context(), h.downloadDir, storage.UploadOptions{
		Bucket:    h.bucket,
		KeyPrefix: prefix,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.transfers.AppendMessage(fmt.Sprintf("✓ Download directory mirrored to %s", dest))
	c.JSON(http.StatusOK, gin.H{"destination": dest})
}

func (h *Handler) deletePrefix(c *gin.Context) {
	if h.storage == nil || h.bucket == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "storage service not configured"})
		return
	}

	prefix := strings.TrimSpace(c.Query("prefix"))
	if prefix == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prefix is required"})
		return
	}

	if err := h.storage.DeletePrefix(c.Request.Context(), h.bucket, prefix); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted_prefix": prefix})
}

type TransferResponse struct {
	Tag             string  `json:"tag"`
	State           string  `json:"state"`
	ProgressPercent float64 `json:"progress_percent"`
	Path            string  `json:"path"`
	Filename        string  `json:"filename"`
	SizeDisplay     string  `json:"size_display"`
}

type SnapshotResponse struct {
	Transfers   []TransferResponse `json:"transfers"`
	Raw         string             `json:"raw"`
	ParseFailed bool               `json:"parse_failed"`
	Messages    []string           `json:"messages"`
	ServerReady bool               `json:"server_ready"`
	UpdatedAt   *string            `json:"updated_at,omitempty"`
}

type SubmissionResponse struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	DownloadDir string `json:"download_dir"`
	Outcome     string `json:"outcome"`
	Message     string `json:"message"`
	CreatedAt   string `json:"created_at"`
}

type StorageObjectResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified,omitempty"`
}

func transferToResponse(t domain.Transfer) TransferResponse {
	return TransferResponse{
		Tag:             t.Tag,
		State:           string(t.State),
		ProgressPercent: t.ProgressPercent,
		Path:            t.Path,
		Filename:        t.Filename,
		SizeDisplay:     t.SizeDisplay,
	}
}

func submissionToResponse(sub domain.Submission) SubmissionResponse {
	return SubmissionResponse{
		ID:          sub.ID,
		URL:         sub.URL,
		DownloadDir: sub.DownloadDir,
		Outcome:     string(sub.Outcome),
		Message:     sub.Message,
		CreatedAt:   sub.CreatedAt.Format(time.RFC3339),
	}
}

func objectToResponse(obj storage.ObjectInfo) StorageObjectResponse {
	resp := StorageObjectResponse{
		Key:  obj.Key,
		Size: obj.Size,
	}
	if obj.LastModified != nil && !obj.LastModified.IsZero() {
		v := obj.LastModified.Format(time.RFC3339)
		resp.LastModified = &v
	}
	return resp
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
