package handler

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wadjakorntonsri/trimrr/pkg/core/domain"
	"github.com/wadjakorntonsri/trimrr/pkg/ports"
)

// OpenPath is the public prefix short links resolve under.
const OpenPath = "/open/"

type HTTPHandler struct {
	links    ports.LinkService
	resolver ports.Resolver
	baseURL  string
	logger   *slog.Logger
}

func NewHTTPHandler(links ports.LinkService, resolver ports.Resolver, baseURL string, logger *slog.Logger) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPHandler{
		links:    links,
		resolver: resolver,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger,
	}
}

// CreateLinkRequest payload
type CreateLinkRequest struct {
	Title          string `json:"title" validate:"required,max=200"`
	DestinationURL string `json:"destination_url" validate:"required,max=2048"`
	CustomAlias    string `json:"custom_alias,omitempty" validate:"omitempty,max=32"`
	QRPNG          string `json:"qr_png,omitempty" validate:"omitempty,base64"` // Base64 encoded image
}

// LinkResponse is a link as the owner sees it
type LinkResponse struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	DestinationURL string    `json:"destination_url"`
	ShortCode      string    `json:"short_code,omitempty"`
	CustomAlias    string    `json:"custom_alias,omitempty"`
	ShortURL       string    `json:"short_url"`
	QRURL          string    `json:"qr_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (h *HTTPHandler) toResponse(l *domain.Link) LinkResponse {
	return LinkResponse{
		ID:             l.ID,
		Title:          l.Title,
		DestinationURL: l.DestinationURL,
		ShortCode:      l.ShortCode,
		CustomAlias:    l.CustomAlias,
		ShortURL:       h.baseURL + OpenPath + l.Identifier(),
		QRURL:          l.QRAssetRef,
		CreatedAt:      l.CreatedAt,
	}
}

// Create Link
func (h *HTTPHandler) Create(c *gin.Context) {
	var req CreateLinkRequest
	if err := bindJSONStrict(c, &req); err != nil {
		badJSON(c)
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.DestinationURL = strings.TrimSpace(req.DestinationURL)

	if errs, ok := validateStruct(req); ok {
		writeFieldErrors(c, http.StatusUnprocessableEntity, errs)
		return
	}

	in := domain.CreateLinkInput{
		Title:          req.Title,
		DestinationURL: req.DestinationURL,
		CustomAlias:    req.CustomAlias,
	}
	if req.QRPNG != "" {
		blob, err := base64.StdEncoding.DecodeString(req.QRPNG)
		if err != nil {
			writeFieldErrors(c, http.StatusUnprocessableEntity, map[string]string{"qr_png": "must be base64 encoded"})
			return
		}
		in.QRImage = blob
	}

	link, err := h.links.Create(c.Request.Context(), ownerID(c), in)
	if err != nil {
		fail(c, err)
		return
	}

	c.Header("Location", fmt.Sprintf("/api/v1/links/%d", link.ID))
	c.JSON(http.StatusCreated, h.toResponse(link))
}

// List the caller's links, newest first. ?q= filters by title.
func (h *HTTPHandler) List(c *gin.Context) {
	list, err := h.links.List(c.Request.Context(), ownerID(c), domain.LinkFilter{Title: c.Query("q")})
	if err != nil {
		fail(c, err)
		return
	}

	resp := make([]LinkResponse, 0, len(list.Links))
	for i := range list.Links {
		resp = append(resp, h.toResponse(&list.Links[i]))
	}

	c.JSON(http.StatusOK, gin.H{"data": resp, "total": len(resp), "total_clicks": list.TotalClicks})
}

func (h *HTTPHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	link, err := h.links.Get(c.Request.Context(), ownerID(c), id)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, h.toResponse(link))
}

// Delete Link
func (h *HTTPHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.links.Delete(c.Request.Context(), ownerID(c), id); err != nil {
		fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Get Stats for a Link
func (h *HTTPHandler) Stats(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	stats, err := h.links.Stats(c.Request.Context(), ownerID(c), id)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Redirect to the destination. The click is recorded off the request path.
func (h *HTTPHandler) Redirect(c *gin.Context) {
	req := domain.RequestContext{
		UserAgent:  c.GetHeader("User-Agent"),
		ClientIP:   c.ClientIP(),
		Referer:    c.GetHeader("Referer"),
		OccurredAt: time.Now().UTC(),
	}

	dest, err := h.resolver.ResolveAndTrack(c.Request.Context(), c.Param("identifier"), req)
	if err != nil {
		if !domain.IsNotFound(err) {
			h.logger.Error("resolve failed", slog.String("identifier", c.Param("identifier")), slog.Any("err", err))
		}
		fail(c, err)
		return
	}

	c.Redirect(http.StatusFound, dest)
}

func (h *HTTPHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

func (h *HTTPHandler) NotFound(c *gin.Context) {
	WriteProblem(c, Problem{
		Type:   ProblemTypeNotFound,
		Title:  http.StatusText(http.StatusNotFound),
		Status: http.StatusNotFound,
		Detail: "not found",
	})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badID(c)
		return 0, false
	}
	return id, true
}
