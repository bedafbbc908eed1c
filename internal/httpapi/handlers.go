package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"stockcheck/backend/internal/domain"
)

func (a *API) handleSalesUnits(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"salesUnits": a.service.SalesUnits()})
}

func (a *API) handleListSalesItems(c *gin.Context) {
	items, err := a.service.ListSalesItems(c.Request.Context())
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"salesItems": items})
}

func (a *API) handleGetSalesItem(c *gin.Context) {
	item, err := a.service.GetSalesItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (a *API) handleCreateSalesItem(c *gin.Context) {
	var req domain.SalesItemRequest
	if !a.bindJSON(c, &req) {
		return
	}
	item, err := a.service.CreateSalesItem(c.Request.Context(), req)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (a *API) handleUpdateSalesItem(c *gin.Context) {
	var req domain.SalesItemRequest
	if !a.bindJSON(c, &req) {
		return
	}
	item, err := a.service.UpdateSalesItem(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (a *API) handleDeleteSalesItem(c *gin.Context) {
	if err := a.service.DeleteSalesItem(c.Request.Context(), c.Param("id")); err != nil {
		a.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) handleListSuppliers(c *gin.Context) {
	suppliers, err := a.service.ListSuppliers(c.Request.Context())
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suppliers": suppliers})
}

func (a *API) handleCreateSupplier(c *gin.Context) {
	var req domain.SupplierCreateRequest
	if !a.bindJSON(c, &req) {
		return
	}
	supplier, err := a.service.CreateSupplier(c.Request.Context(), req)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, supplier)
}

func (a *API) handleListPeriods(c *gin.Context) {
	periods, err := a.service.ListPeriods(c.Request.Context())
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"periods": periods})
}

func (a *API) handleGetPeriod(c *gin.Context) {
	period, err := a.service.GetPeriod(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, period)
}

func (a *API) handleCreatePeriod(c *gin.Context) {
	var req domain.PeriodRequest
	if !a.bindJSON(c, &req) {
		return
	}
	period, err := a.service.CreatePeriod(c.Request.Context(), req)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, period)
}

func (a *API) handleUpdatePeriod(c *gin.Context) {
	var req domain.PeriodRequest
	if !a.bindJSON(c, &req) {
		return
	}
	period, err := a.service.UpdatePeriod(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, period)
}

func (a *API) handleDeletePeriod(c *gin.Context) {
	if err := a.service.DeletePeriod(c.Request.Context(), c.Param("id")); err != nil {
		a.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) carryMode(c *gin.Context) (domain.CarryMode, bool) {
	mode, ok := domain.ParseCarryMode(strings.ToLower(strings.TrimSpace(c.Query("carry"))))
	if !ok {
		a.writeErrorStatus(c, http.StatusBadRequest, errors.New("carry must be all or stocked"))
	}
	return mode, ok
}

func (a *API) handleInitFrom(c *gin.Context) {
	mode, ok := a.carryMode(c)
	if !ok {
		return
	}
	draft, err := a.service.DraftNextPeriod(c.Request.Context(), c.Param("id"), mode)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

func (a *API) handleRollForward(c *gin.Context) {
	mode, ok := a.carryMode(c)
	if !ok {
		return
	}
	next, err := a.service.RollForward(c.Request.Context(), c.Param("id"), mode)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, next)
}

func (a *API) handleReceiveItems(c *gin.Context) {
	var req domain.ReceiveItemsRequest
	if !a.bindJSON(c, &req) {
		return
	}
	item, err := a.service.ReceiveItems(c.Request.Context(), c.Param("id"), c.Param("salesItemId"), req)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (a *API) handlePeriodReport(c *gin.Context) {
	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", "json")))
	if format != "json" && format != "csv" && format != "html" {
		a.writeErrorStatus(c, http.StatusBadRequest, fmt.Errorf("unsupported report format %q", format))
		return
	}

	rep, err := a.service.PeriodReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.writeError(c, err)
		return
	}

	var buf bytes.Buffer
	switch format {
	case "csv":
		if err := a.renderer.CSV(&buf, rep); err != nil {
			a.writeErrorStatus(c, http.StatusInternalServerError, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"stock-report-%s.csv\"", rep.PeriodID))
		c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
	case "html":
		if err := a.renderer.HTML(&buf, rep); err != nil {
			a.writeErrorStatus(c, http.StatusInternalServerError, err)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
	default:
		c.JSON(http.StatusOK, rep)
	}
}

func (a *API) handleListInvoices(c *gin.Context) {
	limit := parsePositiveLimit(c.Query("limit"), 50, 500)
	invoices, err := a.service.ListInvoices(c.Request.Context(), limit)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": invoices})
}

func (a *API) handleGetInvoice(c *gin.Context) {
	invoice, err := a.service.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (a *API) handleCreateInvoice(c *gin.Context) {
	var req domain.InvoiceCreateRequest
	if !a.bindJSON(c, &req) {
		return
	}
	invoice, err := a.service.CreateInvoice(c.Request.Context(), req)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}
