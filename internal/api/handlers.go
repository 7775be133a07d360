package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/urielssan/subite/internal/export"
	"github.com/urielssan/subite/internal/models"
	"github.com/urielssan/subite/internal/service"

	"github.com/gin-gonic/gin"
)

type routeInfo struct {
	Code  models.Route `json:"code"`
	Label string       `json:"label"`
	Date  string       `json:"date"`
	Times []string     `json:"times"`
}

// listRoutes returns both routes with the catalog times for ?date, today by
// default.
func (s *Server) listRoutes(c *gin.Context) {
	date := models.DateOf(s.deps.Clock.Now())
	if raw := strings.TrimSpace(c.Query("date")); raw != "" {
		d, err := models.ParseDate(raw)
		if err != nil {
			badRequest(c, "date must be YYYY-MM-DD")
			return
		}
		date = d
	}

	out := make([]routeInfo, 0, len(models.Routes))
	for _, r := range models.Routes {
		info := routeInfo{Code: r, Label: r.Label(), Date: models.FormatDate(date), Times: []string{}}
		for _, t := range s.deps.Catalog.Sorted(r, date) {
			info.Times = append(info.Times, t.String())
		}
		out = append(out, info)
	}
	c.JSON(http.StatusOK, gin.H{"routes": out})
}

func (s *Server) sharedAvailability(c *gin.Context) {
	passengers := 1
	if raw := strings.TrimSpace(c.Query("passengers")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "passengers must be a number")
			return
		}
		passengers = n
	}

	listing, err := s.deps.Bookings.SharedAvailability(c.Request.Context(), c.Query("route"), c.Query("date"), passengers)
	if err != nil {
		respondDomainError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

func (s *Server) bookShared(c *gin.Context) {
	var req service.SharedBookingRequest
	if !bindJSON(c, &req) {
		return
	}
	s.created(c)(s.deps.Bookings.BookShared(c.Request.Context(), req))
}

func (s *Server) bookParcel(c *gin.Context) {
	var req service.ParcelRequest
	if !bindJSON(c, &req) {
		return
	}
	s.created(c)(s.deps.Bookings.BookParcel(c.Request.Context(), req))
}

func (s *Server) bookAirport(c *gin.Context) {
	var req service.AirportRequest
	if !bindJSON(c, &req) {
		return
	}
	s.created(c)(s.deps.Bookings.BookAirport(c.Request.Context(), req))
}

func (s *Server) bookExclusive(c *gin.Context) {
	var req service.ExclusiveRequest
	if !bindJSON(c, &req) {
		return
	}
	s.created(c)(s.deps.Bookings.BookCityExclusive(c.Request.Context(), req))
}

func (s *Server) bookAnywhere(c *gin.Context) {
	var req service.AnywhereRequest
	if !bindJSON(c, &req) {
		return
	}
	s.created(c)(s.deps.Bookings.BookAnywhere(c.Request.Context(), req))
}

func (s *Server) created(c *gin.Context) func(*models.Confirmation, error) {
	return func(conf *models.Confirmation, err error) {
		if err != nil {
			respondDomainError(c, s.logger, err)
			return
		}
		c.JSON(http.StatusCreated, conf)
	}
}

func (s *Server) receipt(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	summary, err := s.deps.Bookings.Receipt(c.Request.Context(), c.Param("kind"), id, c.Query("ref"))
	if err != nil {
		respondDomainError(c, s.logger, err)
		return
	}

	pdf, err := export.Receipt(*summary)
	if err != nil {
		respondDomainError(c, s.logger, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="`+export.ReceiptFileName(*summary)+`"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "invalid JSON body")
		return false
	}
	return true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "id must be a positive number")
		return 0, false
	}
	return id, true
}
