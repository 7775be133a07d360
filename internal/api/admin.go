package api

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/urielssan/subite/internal/export"
	"github.com/urielssan/subite/internal/service"

	"github.com/gin-gonic/gin"
)

func (s *Server) dashboard(c *gin.Context) {
	counts, err := s.deps.Admin.Dashboard(c.Request.Context())
	if err != nil {
		respondDomainError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (s *Server) listPrices(c *gin.Context) {
	prices, err := s.deps.Admin.Prices(c.Request.Context())
	if err != nil {
		respondDomainError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prices": prices})
}

func (s *Server) updatePrices(c *gin.Context) {
	var values map[string]float64
	if !bindJSON(c, &values) {
		return
	}
	if err := s.deps.Admin.UpdatePrices(c.Request.Context(), values, changedBy(c)); err != nil {
		respondDomainError(c, s.logger, err)
		return
	}
	s.listPrices(c)
}

func (s *Server) listSchedules(c *gin.Context) {
	schedules, err := s.deps.Admin.Schedules(c.Request.Context(), c.Query("from"))
	if err != nil {
		respondDomainError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": schedules})
}

func (s *Server) saveSchedule(c *gin.Context) {
	var in service.ScheduleInput
	if !bindJSON(c, &in) {
		return
	}
	sch, err := s.deps.Admin.SaveSchedule(c.Request.Context(), in)
	if err != nil {
		respondDomainError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, sch)
}

func (s *Server) deleteSchedule(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	cascade, _ := strconv.ParseBool(c.DefaultQuery("cascade", "false"))

	removed, err := s.deps.Admin.DeleteSchedule(c.Request.Context(), id, cascade, changedBy(c))
	if err != nil {
		respondDomainError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id, "bookings_removed": len(removed)})
}

func (s *Server) listBookings(c *gin.Context) {
	overview, err := s.deps.Admin.Bookings(c.Request.Context())
	if err != nil {
		respondDomainError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (s *Server) deleteBooking(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	summary, err := s.deps.Admin.DeleteBooking(c.Request.Context(), c.Param("kind"), id, changedBy(c))
	if err != nil {
		respondDomainError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": summary})
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) exportBookings(c *gin.Context) {
	overview, from, to, err := s.deps.Admin.BookingsBetween(c.Request.Context(), c.Query("from"), c.Query("to"))
	if err != nil {
		respondDomainError(c, s.logger, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteBookings(&buf, from, to, overview.Summaries()); err != nil {
		respondDomainError(c, s.logger, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+export.FileName(from, to)+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

type slotJobRequest struct {
	DryRun bool `json:"dry_run"`
	Days   int  `json:"days"`
}

type slotJob func(ctx context.Context, from, to time.Time, dryRun bool) (any, error)

func (s *Server) runSlotJob(c *gin.Context, job slotJob) {
	var req slotJobRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	if req.Days < 0 {
		badRequest(c, "days must not be negative")
		return
	}

	from, to := s.deps.Slots.Window(req.Days)
	report, err := job(c.Request.Context(), from, to, req.DryRun)
	if err != nil {
		respondDomainError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) cleanupSlots(c *gin.Context) {
	s.runSlotJob(c, func(ctx context.Context, from, to time.Time, dryRun bool) (any, error) {
		return s.deps.Slots.CleanupSlots(ctx, from, to, dryRun)
	})
}

func (s *Server) migrateBookings(c *gin.Context) {
	s.runSlotJob(c, func(ctx context.Context, from, _ time.Time, dryRun bool) (any, error) {
		return s.deps.Slots.MigrateBookings(ctx, from, dryRun)
	})
}

func (s *Server) reconcileSlots(c *gin.Context) {
	s.runSlotJob(c, func(ctx context.Context, from, to time.Time, dryRun bool) (any, error) {
		return s.deps.Slots.Reconcile(ctx, from, to, dryRun)
	})
}
