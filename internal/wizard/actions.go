package wizard

import "github.com/alanyoungcy/liqguard/internal/domain"

// Action is an input to Reduce. The set of actions is closed.
type Action interface {
	action()
}

// Selection edits. Each one invalidates any displayed result.
type (
	SetExchange    struct{ ID string }
	SetPair        struct{ ID string }
	SetOrderID     struct{ Raw string }
	SetSKU         struct{ Code string }
	SetEnvironment struct{ ID string }
	SetPrincipal   struct{ Raw string }
	SetLeverage    struct{ Raw string }
)

// Evidence lifecycle. Gen ties a parse outcome to the upload that started
// it; outcomes for superseded uploads are dropped.
type (
	UploadStarted struct{ Gen uint64 }
	UploadParsed  struct {
		Gen      uint64
		Evidence *domain.Evidence
	}
	UploadFailed struct {
		Gen     uint64
		Message string
	}
	ClearEvidence struct{}
)

// Submission lifecycle. Rev is the InputRev the request was built from.
type (
	SubmitStarted   struct{ Rev uint64 }
	SubmitSucceeded struct {
		Rev    uint64
		Result *domain.VerificationResult
	}
	SubmitFailed struct {
		Kind    domain.ErrorKind
		Message string
		Status  int
	}
)

// Catalog refreshes.
type (
	MarketsChanged struct{}
	SKUsLoaded     struct{ SKUs []domain.SKU }
)

func (SetExchange) action()     {}
func (SetPair) action()         {}
func (SetOrderID) action()      {}
func (SetSKU) action()          {}
func (SetEnvironment) action()  {}
func (SetPrincipal) action()    {}
func (SetLeverage) action()     {}
func (UploadStarted) action()   {}
func (UploadParsed) action()    {}
func (UploadFailed) action()    {}
func (ClearEvidence) action()   {}
func (SubmitStarted) action()   {}
func (SubmitSucceeded) action() {}
func (SubmitFailed) action()    {}
func (MarketsChanged) action()  {}
func (SKUsLoaded) action()      {}
