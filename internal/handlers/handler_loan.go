package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/finflow/loan_engine_app/internal/apperrors"
	portssvc "github.com/finflow/loan_engine_app/internal/core/ports/services"
	"github.com/finflow/loan_engine_app/internal/dto"
	"github.com/finflow/loan_engine_app/internal/middleware"
	"github.com/gin-gonic/gin"
)

// loanHandler handles HTTP requests related to loans.
type loanHandler struct {
	loanService portssvc.LoanSvcFacade
}

// newLoanHandler creates a new loanHandler.
func newLoanHandler(loanService portssvc.LoanSvcFacade) *loanHandler {
	return &loanHandler{
		loanService: loanService,
	}
}

// respondServiceError maps service errors onto HTTP status codes. Validation
// errors carry their field violations; everything unexpected is a 500 with the
// detail kept out of the response body.
func respondServiceError(c *gin.Context, err error, fallbackMsg string) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var verr *apperrors.ValidationError
	if errors.As(err, &verr) {
		logger.Warn("Validation error", slog.String("error", verr.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "violations": verr.Violations})
		return
	}

	switch {
	case errors.Is(err, apperrors.ErrValidation):
		logger.Warn("Validation error", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrNotFound):
		logger.Warn("Resource not found", slog.String("error", err.Error()))
		c.JSON(http.StatusNotFound, gin.H{"error": "Loan not found"})
	case errors.Is(err, apperrors.ErrNotPayable):
		logger.Warn("Loan not payable", slog.String("error", err.Error()))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrInvalidTransition), errors.Is(err, apperrors.ErrConflict):
		logger.Warn("Conflicting loan operation", slog.String("error", err.Error()))
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.Error("Service error", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallbackMsg})
	}
}

// calculateLoan godoc
// @Summary Preview loan metrics without persisting anything
// @Description Computes payment amount, total interest and total payment for the given terms
// @Tags loans
// @Accept  json
// @Produce  json
// @Param   terms body dto.LoanTermsRequest true "Loan terms"
// @Success 200 {object} dto.LoanCalculationResponse "Calculated loan metrics"
// @Failure 400 {object} map[string]string "Invalid request format or terms"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /loans/calculate [post]
func (h *loanHandler) calculateLoan(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	termsReq := dto.LoanTermsRequest{}
	if err := c.ShouldBindJSON(&termsReq); err != nil {
		logger.Error("Failed to bind JSON for CalculateLoan", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	terms, err := termsReq.ToDomainTerms()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start date"})
		return
	}

	result, err := h.loanService.CalculateMetrics(c.Request.Context(), terms)
	if err != nil {
		respondServiceError(c, err, "Failed to calculate loan metrics")
		return
	}

	c.JSON(http.StatusOK, dto.ToLoanCalculationResponse(*result))
}

// createLoan godoc
// @Summary Create a loan or loan simulation
// @Description Validates the terms, generates the full amortization schedule and persists both atomically
// @Tags loans
// @Accept  json
// @Produce  json
// @Param   loan body dto.CreateLoanRequest true "Loan terms and simulation flag"
// @Success 201 {object} dto.LoanDetailResponse "Created loan with its schedule"
// @Failure 400 {object} map[string]string "Invalid request format or terms"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to create loan"
// @Router /loans [post]
func (h *loanHandler) createLoan(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	createReq := dto.CreateLoanRequest{}
	if err := c.ShouldBindJSON(&createReq); err != nil {
		logger.Error("Failed to bind JSON for CreateLoan", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	ownerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		logger.Error("Owner ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	terms, err := createReq.ToDomainTerms()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start date"})
		return
	}

	loan, schedule, err := h.loanService.CreateSimulation(c.Request.Context(), ownerID, terms, createReq.IsSimulation)
	if err != nil {
		respondServiceError(c, err, "Failed to create loan")
		return
	}

	logger.Info("Loan created successfully", slog.String("loan_id", loan.LoanID))
	c.JSON(http.StatusCreated, dto.ToLoanDetailResponse(loan, schedule))
}

// listLoans godoc
// @Summary List loans for the authenticated owner
// @Description Retrieves a paginated list of the owner's loans, optionally filtered by status
// @Tags loans
// @Produce  json
// @Param   status query string false "Filter by loan status" Enums(SIMULATED, ACTIVE, COMPLETED, DEFAULTED, CANCELLED)
// @Param   limit query int false "Page size" default(20)
// @Param   nextToken query string false "Pagination token from a previous page"
// @Success 200 {object} dto.ListLoansResponse "Page of loans"
// @Failure 400 {object} map[string]string "Invalid query parameters"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /loans [get]
func (h *loanHandler) listLoans(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	params := dto.ListLoansParams{}
	if err := c.ShouldBindQuery(&params); err != nil {
		logger.Warn("Invalid query parameters for ListLoans", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return
	}

	ownerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	loans, nextToken, err := h.loanService.ListLoans(c.Request.Context(), ownerID, params)
	if err != nil {
		respondServiceError(c, err, "Failed to list loans")
		return
	}

	c.JSON(http.StatusOK, dto.ToListLoansResponse(loans, nextToken))
}

// getLoan godoc
// @Summary Get a loan with its amortization schedule
// @Description Retrieves a loan by ID together with every schedule row, overdue flags refreshed
// @Tags loans
// @Produce  json
// @Param   loanID path string true "Loan ID"
// @Success 200 {object} dto.LoanDetailResponse "Loan and its schedule"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Loan not found"
// @Router /loans/{loanID} [get]
func (h *loanHandler) getLoan(c *gin.Context) {
	ownerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	loan, schedule, err := h.loanService.GetLoan(c.Request.Context(), ownerID, c.Param("loanID"))
	if err != nil {
		respondServiceError(c, err, "Failed to retrieve loan")
		return
	}

	c.JSON(http.StatusOK, dto.ToLoanDetailResponse(loan, schedule))
}

// getSchedule godoc
// @Summary Get a loan's amortization schedule
// @Description Retrieves every schedule row for a loan, overdue flags refreshed
// @Tags loans
// @Produce  json
// @Param   loanID path string true "Loan ID"
// @Success 200 {array} dto.ScheduleItemResponse "Schedule rows ordered by installment number"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Loan not found"
// @Router /loans/{loanID}/schedule [get]
func (h *loanHandler) getSchedule(c *gin.Context) {
	ownerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	schedule, err := h.loanService.GetSchedule(c.Request.Context(), ownerID, c.Param("loanID"))
	if err != nil {
		respondServiceError(c, err, "Failed to retrieve schedule")
		return
	}

	c.JSON(http.StatusOK, dto.ToScheduleItemResponses(schedule))
}

// listPayments godoc
// @Summary List payments recorded against a loan
// @Description Retrieves the payment history of a loan, oldest first
// @Tags payments
// @Produce  json
// @Param   loanID path string true "Loan ID"
// @Success 200 {array} dto.PaymentResponse "Payment records"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Loan not found"
// @Router /loans/{loanID}/payments [get]
func (h *loanHandler) listPayments(c *gin.Context) {
	ownerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	payments, err := h.loanService.ListPayments(c.Request.Context(), ownerID, c.Param("loanID"))
	if err != nil {
		respondServiceError(c, err, "Failed to list payments")
		return
	}

	c.JSON(http.StatusOK, dto.ToPaymentResponses(payments))
}

// applyPayment godoc
// @Summary Apply a payment to a loan
// @Description Settles the oldest unpaid installment; any excess reduces principal directly
// @Tags payments
// @Accept  json
// @Produce  json
// @Param   loanID path string true "Loan ID"
// @Param   payment body dto.ApplyPaymentRequest true "Payment details"
// @Success 201 {object} dto.PaymentResponse "Recorded payment"
// @Failure 400 {object} map[string]string "Invalid request format or amount"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Loan not found"
// @Failure 409 {object} map[string]string "Concurrent payment conflict"
// @Failure 422 {object} map[string]string "Loan is not payable"
// @Router /loans/{loanID}/payments [post]
func (h *loanHandler) applyPayment(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	paymentReq := dto.ApplyPaymentRequest{}
	if err := c.ShouldBindJSON(&paymentReq); err != nil {
		logger.Error("Failed to bind JSON for ApplyPayment", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	ownerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	payment, err := h.loanService.ApplyPayment(c.Request.Context(), ownerID, c.Param("loanID"), paymentReq)
	if err != nil {
		respondServiceError(c, err, "Failed to apply payment")
		return
	}

	logger.Info("Payment applied successfully", slog.String("payment_id", payment.PaymentID))
	c.JSON(http.StatusCreated, dto.ToPaymentResponse(payment))
}

// activateLoan godoc
// @Summary Activate a simulated loan
// @Description Promotes a SIMULATED loan to ACTIVE so payments can be applied
// @Tags loans
// @Produce  json
// @Param   loanID path string true "Loan ID"
// @Success 200 {object} dto.LoanResponse "Updated loan"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Loan not found"
// @Failure 409 {object} map[string]string "Transition not allowed"
// @Router /loans/{loanID}/activate [post]
func (h *loanHandler) activateLoan(c *gin.Context) {
	ownerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	loan, err := h.loanService.ActivateLoan(c.Request.Context(), ownerID, c.Param("loanID"))
	if err != nil {
		respondServiceError(c, err, "Failed to activate loan")
		return
	}

	c.JSON(http.StatusOK, dto.ToLoanResponse(loan))
}

// cancelLoan godoc
// @Summary Cancel a loan
// @Description Cancels a SIMULATED loan, or an ACTIVE loan with no payments recorded
// @Tags loans
// @Produce  json
// @Param   loanID path string true "Loan ID"
// @Success 200 {object} dto.LoanResponse "Updated loan"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Loan not found"
// @Failure 409 {object} map[string]string "Transition not allowed"
// @Router /loans/{loanID}/cancel [post]
func (h *loanHandler) cancelLoan(c *gin.Context) {
	ownerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	loan, err := h.loanService.CancelLoan(c.Request.Context(), ownerID, c.Param("loanID"))
	if err != nil {
		respondServiceError(c, err, "Failed to cancel loan")
		return
	}

	c.JSON(http.StatusOK, dto.ToLoanResponse(loan))
}

// markDefaulted godoc
// @Summary Mark an active loan as defaulted
// @Description Records an explicit default decision against an ACTIVE loan
// @Tags loans
// @Produce  json
// @Param   loanID path string true "Loan ID"
// @Success 200 {object} dto.LoanResponse "Updated loan"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Loan not found"
// @Failure 409 {object} map[string]string "Transition not allowed"
// @Router /loans/{loanID}/default [post]
func (h *loanHandler) markDefaulted(c *gin.Context) {
	ownerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	loan, err := h.loanService.MarkDefaulted(c.Request.Context(), ownerID, c.Param("loanID"))
	if err != nil {
		respondServiceError(c, err, "Failed to mark loan as defaulted")
		return
	}

	c.JSON(http.StatusOK, dto.ToLoanResponse(loan))
}

// getPortfolioSummary godoc
// @Summary Get the owner's portfolio summary
// @Description Aggregates counts, balances and interest paid across the owner's loans
// @Tags loans
// @Produce  json
// @Success 200 {object} dto.PortfolioSummaryResponse "Portfolio summary"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /loans/summary [get]
func (h *loanHandler) getPortfolioSummary(c *gin.Context) {
	ownerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	summary, err := h.loanService.GetPortfolioSummary(c.Request.Context(), ownerID)
	if err != nil {
		respondServiceError(c, err, "Failed to build portfolio summary")
		return
	}

	c.JSON(http.StatusOK, summary)
}

// RegisterLoanRoutes registers loan specific routes
func RegisterLoanRoutes(group *gin.RouterGroup, loanService portssvc.LoanSvcFacade) {
	handler := newLoanHandler(loanService)

	loans := group.Group("/loans")
	{
		loans.POST("", handler.createLoan)
		loans.GET("", handler.listLoans)
		loans.POST("/calculate", handler.calculateLoan)
		loans.GET("/summary", handler.getPortfolioSummary)
		loans.GET("/:loanID", handler.getLoan)
		loans.GET("/:loanID/schedule", handler.getSchedule)
		loans.GET("/:loanID/payments", handler.listPayments)
		loans.POST("/:loanID/payments", handler.applyPayment)
		loans.POST("/:loanID/activate", handler.activateLoan)
		loans.POST("/:loanID/cancel", handler.cancelLoan)
		loans.POST("/:loanID/default", handler.markDefaulted)
	}
}
