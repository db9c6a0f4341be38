package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/premsagar786/printsmart/internal/docs"
	"github.com/premsagar786/printsmart/internal/engine"
	"github.com/premsagar786/printsmart/internal/pricing"
)

type CreateJobRequest struct {
	FileName       string `json:"file_name" binding:"required"`
	TotalPages     int    `json:"total_pages" binding:"required,min=1"`
	PageSelection  string `json:"pages"`
	ColorMode      string `json:"color_mode"`
	Duplex         bool   `json:"duplex"`
	Copies         int    `json:"copies"`
	Expedited      bool   `json:"expedited"`
	CustomerName   string `json:"customer_name"`
	PayerReference string `json:"payer_reference"`
	DocumentHandle string `json:"document_handle"`
	Paid           bool   `json:"paid"`
}

type WalkInJobRequest struct {
	Pages     int    `json:"pages" binding:"required,min=1"`
	ColorMode string `json:"color_mode"`
	Duplex    bool   `json:"duplex"`
	Copies    int    `json:"copies"`
	Expedited bool   `json:"expedited"`
}

type QuoteRequest struct {
	TotalPages    int    `json:"total_pages" binding:"required,min=1"`
	PageSelection string `json:"pages"`
	ColorMode     string `json:"color_mode"`
	Duplex        bool   `json:"duplex"`
	Copies        int    `json:"copies"`
	Expedited     bool   `json:"expedited"`
}

type ScanRequest struct {
	Code string `json:"code" binding:"required"`
}

type SetPriorityRequest struct {
	Priority int `json:"priority" binding:"required"`
}

type AdvanceJobRequest struct {
	Status engine.Status `json:"status" binding:"required"`
}

type JobResponse struct {
	ID             int64     `json:"id"`
	FileName       string    `json:"file_name"`
	Pages          int       `json:"pages"`
	IsWalkIn       bool      `json:"is_walk_in"`
	Token          string    `json:"token"`
	Cost           float64   `json:"cost"`
	IsExpedited    bool      `json:"is_expedited"`
	Priority       int       `json:"priority"`
	PriorityLabel  string    `json:"priority_label"`
	Status         string    `json:"status"`
	PaymentStatus  string    `json:"payment_status"`
	CustomerName   string    `json:"customer_name,omitempty"`
	PayerReference string    `json:"payer_reference,omitempty"`
	HasDocument    bool      `json:"has_document"`
	CreatedAt      time.Time `json:"created_at"`
}

func toJobResponse(j engine.Job) JobResponse {
	return JobResponse{
		ID:             j.ID,
		FileName:       j.FileName,
		Pages:          j.Pages,
		IsWalkIn:       j.IsWalkIn,
		Token:          j.Token,
		Cost:           j.Cost,
		IsExpedited:    j.IsExpedited,
		Priority:       int(j.Priority),
		PriorityLabel:  j.Priority.String(),
		Status:         string(j.Status),
		PaymentStatus:  string(j.PaymentStatus),
		CustomerName:   j.CustomerName,
		PayerReference: j.PayerReference,
		HasDocument:    j.DocumentHandle != "",
		CreatedAt:      j.CreatedAt,
	}
}

func toJobResponses(jobs []engine.Job) []JobResponse {
	out := make([]JobResponse, len(jobs))
	for i, j := range jobs {
		out[i] = toJobResponse(j)
	}
	return out
}

type JobHandler struct {
	engine  *engine.Engine
	library *docs.Library
}

func NewJobHandler(eng *engine.Engine, library *docs.Library) *JobHandler {
	return &JobHandler{engine: eng, library: library}
}

func colorMode(s string) pricing.ColorMode {
	if s == string(pricing.ColorModeColor) {
		return pricing.ColorModeColor
	}
	return pricing.ColorModeBW
}

func (h *JobHandler) CreateJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.engine.Submit(engine.SubmitRequest{
		FileName: req.FileName,
		Options: pricing.Options{
			PageSelection: req.PageSelection,
			TotalPages:    req.TotalPages,
			ColorMode:     colorMode(req.ColorMode),
			Duplex:        req.Duplex,
			Copies:        req.Copies,
			Expedited:     req.Expedited,
		},
		CustomerName:   req.CustomerName,
		PayerReference: req.PayerReference,
		DocumentHandle: req.DocumentHandle,
		Paid:           req.Paid,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, toJobResponse(job))
}

func (h *JobHandler) CreateWalkInJob(c *gin.Context) {
	var req WalkInJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.engine.Submit(engine.SubmitRequest{
		Options: pricing.Options{
			TotalPages: req.Pages,
			ColorMode:  colorMode(req.ColorMode),
			Duplex:     req.Duplex,
			Copies:     req.Copies,
			Expedited:  req.Expedited,
		},
		CustomerName: "Walk-in Customer",
		WalkIn:       true,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, toJobResponse(job))
}

// ListJobs serves the dashboard views: ?status= narrows to one
// lifecycle state ("live" covers everything not yet collected) and
// ?payment= filters by payment status.
func (h *JobHandler) ListJobs(c *gin.Context) {
	status := c.Query("status")
	payment := c.Query("payment")

	var out []engine.Job
	for _, j := range h.engine.Jobs() {
		switch status {
		case "", "all":
		case "live":
			if j.Status == engine.StatusCollected {
				continue
			}
		default:
			if string(j.Status) != status {
				continue
			}
		}
		switch payment {
		case "", "all":
		default:
			if string(j.PaymentStatus) != payment {
				continue
			}
		}
		out = append(out, j)
	}

	c.JSON(http.StatusOK, gin.H{"jobs": toJobResponses(out)})
}

// GetQueue is the customer-facing live queue. ?mine= names the caller's
// own job so it stays visible after collection.
func (h *JobHandler) GetQueue(c *gin.Context) {
	var ownJobID int64
	if v := c.Query("mine"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			ownJobID = id
		}
	}

	c.JSON(http.StatusOK, gin.H{"jobs": toJobResponses(h.engine.LiveQueue(ownJobID))})
}

func (h *JobHandler) AdvanceJob(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	var req AdvanceJobRequest
	var job engine.Job
	if err := c.ShouldBindJSON(&req); err == nil && req.Status != "" {
		job, err = h.engine.Transition(id, req.Status)
		h.respondTransition(c, job, err)
		return
	}

	job, err = h.engine.Advance(id)
	h.respondTransition(c, job, err)
}

func (h *JobHandler) respondTransition(c *gin.Context, job engine.Job, err error) {
	if err != nil {
		var invalid *engine.InvalidTransitionError
		switch {
		case errors.Is(err, engine.ErrJobNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		case errors.As(err, &invalid):
			c.JSON(http.StatusConflict, gin.H{"error": invalid.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update job"})
		}
		return
	}
	c.JSON(http.StatusOK, toJobResponse(job))
}

func (h *JobHandler) SetPriority(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	var req SetPriorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.engine.SetPriority(id, engine.Priority(req.Priority))
	if err != nil {
		if errors.Is(err, engine.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, toJobResponse(job))
}

func (h *JobHandler) MarkPaid(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	job, err := h.engine.MarkPaid(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.JSON(http.StatusOK, toJobResponse(job))
}

// Scan consumes a decoded QR payload and attempts collection.
func (h *JobHandler) Scan(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	job, err := h.engine.ResolveScanCode(req.Code)
	if err != nil {
		var notReady *engine.NotReadyError
		switch {
		case errors.Is(err, engine.ErrInvalidCode):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid QR Code."})
		case errors.Is(err, engine.ErrTokenNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Invalid Token. Job not found."})
		case errors.As(err, &notReady):
			c.JSON(http.StatusConflict, gin.H{
				"error":  notReady.Error(),
				"status": string(notReady.Status),
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "scan failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Success! Job " + job.Token + " marked as collected.",
		"job":     toJobResponse(job),
	})
}

// Refresh runs one tick on demand; the recurring timer uses the same
// engine entry point.
func (h *JobHandler) Refresh(c *gin.Context) {
	changed := h.engine.Tick()
	c.JSON(http.StatusOK, gin.H{"changed": changed})
}

func (h *JobHandler) Quote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cost := h.engine.Quote(pricing.Options{
		PageSelection: req.PageSelection,
		TotalPages:    req.TotalPages,
		ColorMode:     colorMode(req.ColorMode),
		Duplex:        req.Duplex,
		Copies:        req.Copies,
		Expedited:     req.Expedited,
	})

	c.JSON(http.StatusOK, gin.H{"cost": cost})
}

func (h *JobHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Stats())
}

// UploadDocument stores an uploaded file and returns the opaque handle
// to reference at submission.
func (h *JobHandler) UploadDocument(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read upload"})
		return
	}
	defer f.Close()

	handle, err := h.library.Put(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store document"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"handle": handle})
}

// GetJobDocument streams a job's stored document to the print dispatch
// side. Jobs without a resolvable handle report no printable file.
func (h *JobHandler) GetJobDocument(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	job, err := h.engine.Job(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	r, err := h.library.Open(job.DocumentHandle)
	if err != nil {
		if errors.Is(err, docs.ErrNoDocument) {
			c.JSON(http.StatusNotFound, gin.H{"error": "This job has no printable file. It might be a walk-in order or from a previous session."})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open document"})
		return
	}
	defer r.Close()

	c.Header("Content-Disposition", `attachment; filename="`+job.FileName+`"`)
	c.Header("Content-Type", "application/octet-stream")
	c.Status(http.StatusOK)
	io.Copy(c.Writer, r)
}
