package api

// RequestTransactionReq is the JSON body for a deposit or withdrawal request.
type RequestTransactionReq struct {
	Kind   string `json:"kind" binding:"required,oneof=deposit withdraw"`
	Amount string `json:"amount" binding:"required"` // decimal as string to avoid float precision loss
}

// OpenInvestmentReq opens a position in one of the catalog plans.
type OpenInvestmentReq struct {
	PlanID string `json:"plan_id" binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

// RejectTransactionReq carries the mandatory rejection reason.
type RejectTransactionReq struct {
	Reason string `json:"reason" binding:"required"`
}

// SetAccountStatusReq toggles a user between active and suspended.
type SetAccountStatusReq struct {
	Status string `json:"status" binding:"required,oneof=active suspended"`
}

// UpdatePlanReq edits the mutable fields of a catalog plan.
type UpdatePlanReq struct {
	Name         string `json:"name" binding:"required"`
	Description  string `json:"description"`
	MinAmount    string `json:"min_amount" binding:"required"`
	ROI          string `json:"roi" binding:"required"`
	DurationDays int    `json:"duration_days" binding:"required,min=1"`
	Recommended  bool   `json:"recommended"`
}
