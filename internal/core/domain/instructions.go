package domain

// DepositInstructions is the rail-specific payload returned by initiate.
// Each rail has its own variant with its own required fields rather than one
// structure with optional fields.
type DepositInstructions interface {
	Rail() Rail
}

// CardInstructions carries the processor client secret used to complete a
// card payment on the client side.
type CardInstructions struct {
	ClientSecret    string `json:"client_secret"`
	PaymentIntentID string `json:"payment_intent_id"`
}

func (CardInstructions) Rail() Rail { return RailCard }

// BankInstructions carries static payee details for a manual bank transfer.
type BankInstructions struct {
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	BranchCode    string `json:"branch_code"`
	Reference     string `json:"reference"`
}

func (BankInstructions) Rail() Rail { return RailBank }

// PayIDInstructions carries the instant-transfer alias, or a hosted checkout
// URL when the processor provides one.
type PayIDInstructions struct {
	PayID       string  `json:"payid"`
	Reference   string  `json:"reference"`
	RedirectURL *string `json:"redirect_url,omitempty"`
}

func (PayIDInstructions) Rail() Rail { return RailInstant }

// CryptoInstructions carries the deposit address and memo for the blockchain
// rail. The deposit is credited only after RequiredConfirmations are observed.
type CryptoInstructions struct {
	Address               string `json:"address"`
	Memo                  string `json:"memo"`
	RequiredConfirmations int    `json:"required_confirmations"`
}

func (CryptoInstructions) Rail() Rail { return RailChain }
