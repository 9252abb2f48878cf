package claims

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/clearclaim/clearclaim/internal/offset"
	"github.com/clearclaim/clearclaim/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the claims workflow.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers claim routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/claims", h.handleCreateClaim)
	r.Get("/claims/{claimID}", h.handleGetClaim)
	r.Post("/claims/{claimID}/expenditures", h.handleRecordExpenditure)
	r.Post("/claims/{claimID}/registration/submit", h.handleSubmitRegistration)
	r.Post("/claims/{claimID}/registration", h.handleRecordRegistration)
	r.Post("/claims/{claimID}/status", h.handleUpdateStatus)
	r.Get("/offset/estimate", h.handleEstimate)
}

type createClaimForm struct {
	CompanyID   int64  `json:"companyId" validate:"required,gt=0"`
	PeriodStart string `json:"periodStart" validate:"required,datetime=2006-01-02"`
	PeriodEnd   string `json:"periodEnd" validate:"required,datetime=2006-01-02"`
}

type expenditureForm struct {
	ProjectID             *int64  `json:"projectId"`
	Type                  string  `json:"type" validate:"required"`
	Description           string  `json:"description"`
	AmountExTax           string  `json:"amountExTax" validate:"required"`
	TaxAmount             string  `json:"taxAmount"`
	Paid                  bool    `json:"paid"`
	PaymentDate           *string `json:"paymentDate"`
	Associate             bool    `json:"associate"`
	Overseas              bool    `json:"overseas"`
	RSPRegistrationNumber *string `json:"rspRegistrationNumber"`
}

type registrationForm struct {
	Reference string `json:"reference" validate:"required"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
}

type statusForm struct {
	Status string `json:"status" validate:"required"`
}

type claimResponse struct {
	ID                      int64        `json:"id"`
	CompanyID               int64        `json:"companyId"`
	PeriodStart             string       `json:"periodStart"`
	PeriodEnd               string       `json:"periodEnd"`
	RegistrationStatus      string       `json:"registrationStatus"`
	RegistrationDeadline    *string      `json:"registrationDeadline,omitempty"`
	RegistrationSubmittedAt *time.Time   `json:"registrationSubmittedAt,omitempty"`
	RegistrationReference   *string      `json:"registrationReference,omitempty"`
	RegistrationDate        *string      `json:"registrationDate,omitempty"`
	Status                  string       `json:"status"`
	TotalNotionalDeduction  *string      `json:"totalNotionalDeduction,omitempty"`
	OffsetType              *string      `json:"offsetType,omitempty"`
	OffsetTypeLabel         *string      `json:"offsetTypeLabel,omitempty"`
	RefundableOffset        *string      `json:"refundableOffset,omitempty"`
	NonRefundableOffset     *string      `json:"nonRefundableOffset,omitempty"`
	CreatedAt               time.Time    `json:"createdAt"`
	UpdatedAt               time.Time    `json:"updatedAt"`
}

func toClaimResponse(c Claim) claimResponse {
	resp := claimResponse{
		ID:                      c.ID,
		CompanyID:               c.CompanyID,
		PeriodStart:             c.PeriodStart.Format("2006-01-02"),
		PeriodEnd:               c.PeriodEnd.Format("2006-01-02"),
		RegistrationStatus:      string(c.RegistrationStatus),
		RegistrationSubmittedAt: c.RegistrationSubmittedAt,
		RegistrationReference:   c.RegistrationReference,
		Status:                  string(c.Status),
	}
	if c.RegistrationDeadline != nil {
		d := c.RegistrationDeadline.Format("2006-01-02")
		resp.RegistrationDeadline = &d
	}
	if c.RegistrationDate != nil {
		d := c.RegistrationDate.Format("2006-01-02")
		resp.RegistrationDate = &d
	}
	if c.TotalNotionalDeduction != nil {
		s := c.TotalNotionalDeduction.String()
		resp.TotalNotionalDeduction = &s
	}
	if c.OffsetType != nil {
		t := string(*c.OffsetType)
		label := c.OffsetType.Label()
		resp.OffsetType = &t
		resp.OffsetTypeLabel = &label
	}
	if c.RefundableOffset != nil {
		s := c.RefundableOffset.String()
		resp.RefundableOffset = &s
	}
	if c.NonRefundableOffset != nil {
		s := c.NonRefundableOffset.String()
		resp.NonRefundableOffset = &s
	}
	resp.CreatedAt = c.CreatedAt
	resp.UpdatedAt = c.UpdatedAt
	return resp
}

func (h *Handler) handleCreateClaim(w http.ResponseWriter, r *http.Request) {
	var form createClaimForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	start, err := time.Parse("2006-01-02", form.PeriodStart)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "periodStart must be YYYY-MM-DD")
		return
	}
	end, err := time.Parse("2006-01-02", form.PeriodEnd)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "periodEnd must be YYYY-MM-DD")
		return
	}
	claim, err := h.service.CreateClaim(r.Context(), CreateClaimInput{
		CompanyID:   form.CompanyID,
		PeriodStart: start,
		PeriodEnd:   end,
	})
	if err != nil {
		h.logger.Error("create claim", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toClaimResponse(claim))
}

func (h *Handler) handleGetClaim(w http.ResponseWriter, r *http.Request) {
	claimID, ok := h.claimID(w, r)
	if !ok {
		return
	}
	claim, err := h.service.repo.GetClaim(r.Context(), claimID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toClaimResponse(claim))
}

func (h *Handler) handleRecordExpenditure(w http.ResponseWriter, r *http.Request) {
	claimID, ok := h.claimID(w, r)
	if !ok {
		return
	}
	var form expenditureForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	amount, err := decimal.NewFromString(form.AmountExTax)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "amountExTax must be a decimal string")
		return
	}
	tax := decimal.Zero
	if form.TaxAmount != "" {
		tax, err = decimal.NewFromString(form.TaxAmount)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid request", "taxAmount must be a decimal string")
			return
		}
	}
	var paymentDate *time.Time
	if form.PaymentDate != nil && *form.PaymentDate != "" {
		parsed, err := time.Parse("2006-01-02", *form.PaymentDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid request", "paymentDate must be YYYY-MM-DD")
			return
		}
		paymentDate = &parsed
	}
	claim, err := h.service.RecordExpenditure(r.Context(), RecordExpenditureInput{
		ClaimID:               claimID,
		ProjectID:             form.ProjectID,
		Type:                  ExpenditureType(form.Type),
		Description:           form.Description,
		AmountExTax:           amount,
		TaxAmount:             tax,
		Paid:                  form.Paid,
		PaymentDate:           paymentDate,
		Associate:             form.Associate,
		Overseas:              form.Overseas,
		RSPRegistrationNumber: form.RSPRegistrationNumber,
	})
	if err != nil {
		h.logger.Error("record expenditure", slog.Int64("claim_id", claimID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toClaimResponse(claim))
}

func (h *Handler) handleSubmitRegistration(w http.ResponseWriter, r *http.Request) {
	claimID, ok := h.claimID(w, r)
	if !ok {
		return
	}
	var form statusForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	claim, err := h.service.SubmitRegistration(r.Context(), claimID, RegistrationStatus(form.Status))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toClaimResponse(claim))
}

func (h *Handler) handleRecordRegistration(w http.ResponseWriter, r *http.Request) {
	claimID, ok := h.claimID(w, r)
	if !ok {
		return
	}
	var form registrationForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	date, err := time.Parse("2006-01-02", form.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "date must be YYYY-MM-DD")
		return
	}
	claim, err := h.service.RecordRegistration(r.Context(), claimID, form.Reference, date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toClaimResponse(claim))
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	claimID, ok := h.claimID(w, r)
	if !ok {
		return
	}
	var form statusForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	claim, err := h.service.UpdateStatus(r.Context(), claimID, ClaimStatus(form.Status))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toClaimResponse(claim))
}

type estimateResponse struct {
	OffsetType string `json:"offsetType"`
	Label      string `json:"label"`
	Rate       string `json:"rate"`
	Amount     string `json:"amount"`
}

func (h *Handler) handleEstimate(w http.ResponseWriter, r *http.Request) {
	expenditure, err := decimal.NewFromString(r.URL.Query().Get("expenditure"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "expenditure must be a decimal string")
		return
	}
	turnover := decimal.Zero
	if raw := r.URL.Query().Get("turnover"); raw != "" {
		turnover, err = decimal.NewFromString(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid request", "turnover must be a decimal string")
			return
		}
	}
	est, err := offset.EstimateOffset(expenditure, turnover)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, estimateResponse{
		OffsetType: string(est.OffsetType),
		Label:      est.Label,
		Rate:       est.Rate.String(),
		Amount:     est.Amount.String(),
	})
}

func (h *Handler) claimID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "claimID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "claim id must be a positive integer")
		return 0, false
	}
	return id, true
}
