package request

type ConfirmDeliveryRequest struct {
	Rating *int `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type ResolveDisputeRequest struct {
	Decision string `json:"decision" validate:"required,oneof=refund_full refund_partial release"`
	Amount   int64  `json:"amount" validate:"gte=0"`
	Note     string `json:"note" validate:"max=1000"`
}
