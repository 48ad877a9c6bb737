package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"contentchain/core/host"
	"contentchain/native/amm"
	"contentchain/native/auction"
	"contentchain/native/bank"
	"contentchain/native/content"
	"contentchain/native/minter"
	"contentchain/native/registry"
	"contentchain/native/rewarder"
)

// badRequest marks errors produced while decoding a request.
type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }
func (b badRequest) Unwrap() error { return b.err }

func invalid(err error) error { return badRequest{err: err} }

var notFoundErrors = []error{
	registry.ErrChannelNotFound,
	content.ErrItemNotFound,
	bank.ErrUnknownToken,
	rewarder.ErrRewardTokenNotFound,
	content.ErrNotInitialized,
	rewarder.ErrNotInitialized,
	minter.ErrNotInitialized,
	auction.ErrNotInitialized,
}

var forbiddenErrors = []error{
	content.ErrNotOwner,
	content.ErrNotModerator,
	content.ErrTransferDisabled,
	rewarder.ErrUnauthorized,
	bank.ErrMintUnauthorized,
	errCallerMismatch,
}

var conflictErrors = []error{
	content.ErrEpochMismatch,
	content.ErrExpired,
	content.ErrMaxPriceExceeded,
	content.ErrAlreadyApproved,
	auction.ErrEpochMismatch,
	auction.ErrExpired,
	auction.ErrMaxPriceExceeded,
	rewarder.ErrRewardTokenAlreadyAdded,
	rewarder.ErrTooManyRewardTokens,
	bank.ErrTokenExists,
	host.ErrModulePaused,
}

var validationErrors = []error{
	content.ErrInvalidRecipient,
	content.ErrInvalidURI,
	content.ErrInvalidOwner,
	content.ErrInvalidTreasury,
	content.ErrNotApproved,
	content.ErrNothingToClaim,
	content.ErrZeroFloorPrice,
	content.ErrFloorPriceExceedsMax,
	content.ErrEpochPeriodOutOfRange,
	auction.ErrInvalidRecipient,
	auction.ErrEmptyAssets,
	auction.ErrEpochPeriodBelowMin,
	auction.ErrEpochPeriodExceedsMax,
	auction.ErrPriceMultiplierBelowMin,
	auction.ErrPriceMultiplierExceedsMax,
	auction.ErrMinInitPriceBelowMin,
	auction.ErrMinInitPriceExceedsMax,
	auction.ErrInitPriceBelowMin,
	auction.ErrInitPriceExceedsMax,
	minter.ErrHalvingPeriodBelowMin,
	minter.ErrInvalidInitialRate,
	minter.ErrInitialRateExceedsMax,
	minter.ErrInvalidFloorRate,
	registry.ErrInvalidLauncher,
	registry.ErrEmptyTokenName,
	registry.ErrEmptyTokenSymbol,
	registry.ErrInsufficientQuote,
	registry.ErrInvalidUnitAmount,
	bank.ErrInsufficientBalance,
	bank.ErrInvalidAmount,
	amm.ErrInsufficientAmount,
	amm.ErrInsufficientLiquidity,
	amm.ErrEmptyPool,
	rewarder.ErrInvalidAmount,
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// statusFor maps a domain error onto its HTTP status.
func statusFor(err error) int {
	var br badRequest
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &br):
		return http.StatusBadRequest
	case matchesAny(err, notFoundErrors):
		return http.StatusNotFound
	case matchesAny(err, forbiddenErrors):
		return http.StatusForbidden
	case matchesAny(err, conflictErrors):
		return http.StatusConflict
	case matchesAny(err, validationErrors):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil && status < http.StatusInternalServerError {
		message = err.Error()
	}
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
