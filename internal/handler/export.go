package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/campushub/classroom-reservation/internal/config"
	"github.com/campushub/classroom-reservation/internal/model"
	"github.com/campushub/classroom-reservation/internal/timeslot"
)

// ExportHandler renders the reservation log as an xlsx workbook for the
// administration office.
type ExportHandler struct {
	Cfg          config.Config
	Slots        *timeslot.Table
	Reservations ReservationStore
	Log          *zap.Logger
}

var exportHeader = []interface{}{
	"ID", "Batch", "Student No", "Classroom", "Seat",
	"Date", "Time Slot", "Status", "By Admin", "Created At",
}

// Export handles GET /v1/admin/reservations/export?from=&to=.  The range
// defaults to the last 30 days.
func (h *ExportHandler) Export(c echo.Context) error {
	to := today()
	from := to.AddDate(0, 0, -30)
	var err error
	if fs := c.QueryParam("from"); fs != "" {
		if from, err = parseDate(fs); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid from date, want YYYY-MM-DD"})
		}
	}
	if ts := c.QueryParam("to"); ts != "" {
		if to, err = parseDate(ts); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid to date, want YYYY-MM-DD"})
		}
	}
	if to.Before(from) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "to must not precede from"})
	}

	rows, err := h.Reservations.ListRange(c.Request().Context(), from, to)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load reservations failed"})
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	const sheet = "Reservations"
	f.SetSheetName(f.GetSheetName(0), sheet)

	if err := f.SetSheetRow(sheet, "A1", &exportHeader); err != nil {
		h.Log.Error("export: write header failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "generate workbook failed"})
	}
	for i, r := range rows {
		label := h.Slots.Label(r.TimeSlot)
		byAdmin := ""
		if r.AdminAction {
			byAdmin = "yes"
		}
		row := []interface{}{
			r.ID, r.BatchID, r.StudentNo, r.Classroom,
			model.SeatLabel(r.SeatRow, r.SeatCol),
			r.Date.Format("2006-01-02"), label, r.Status, byAdmin,
			r.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			h.Log.Error("export: write row failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "generate workbook failed"})
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		h.Log.Error("export: serialize failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "generate workbook failed"})
	}

	filename := fmt.Sprintf("reservations_%s_%s.xlsx",
		from.Format("20060102"), to.Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, filename))
	return c.Blob(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		buf.Bytes())
}
