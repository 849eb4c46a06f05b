package reconcile

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

const (
	defaultAmountTolerancePct = 5
	defaultDateToleranceDays  = 5

	maxAmountTolerancePct = 100
	maxDateToleranceDays  = 30
)

// SyncSettings are the per-connection matching knobs.
type SyncSettings struct {
	AmountTolerancePct decimal.Decimal `json:"amountTolerancePct"`
	DateToleranceDays  int             `json:"dateToleranceDays"`
	AutoImport         bool            `json:"autoImport"`
}

func DefaultSettings() SyncSettings {
	return SyncSettings{
		AmountTolerancePct: decimal.NewFromInt(defaultAmountTolerancePct),
		DateToleranceDays:  defaultDateToleranceDays,
		AutoImport:         false,
	}
}

func NormalizeSettings(s SyncSettings) SyncSettings {
	if s.AmountTolerancePct.IsNegative() || s.AmountTolerancePct.GreaterThan(decimal.NewFromInt(maxAmountTolerancePct)) {
		s.AmountTolerancePct = decimal.NewFromInt(defaultAmountTolerancePct)
	}
	if s.DateToleranceDays < 0 || s.DateToleranceDays > maxDateToleranceDays {
		s.DateToleranceDays = defaultDateToleranceDays
	}
	return s
}

func DecodeSettings(raw []byte) SyncSettings {
	if len(raw) == 0 {
		return DefaultSettings()
	}
	var s SyncSettings
	if err := json.Unmarshal(raw, &s); err != nil {
		return DefaultSettings()
	}
	return NormalizeSettings(s)
}

func EncodeSettings(s SyncSettings) []byte {
	b, _ := json.Marshal(NormalizeSettings(s))
	return b
}

type CursorEntry struct {
	UpdatedSince string `json:"updated_since"`
	Cursor       string `json:"cursor"`
}

type CursorState struct {
	Records CursorEntry `json:"records"`
}

func DecodeCursorState(raw []byte) CursorState {
	if len(raw) == 0 {
		return CursorState{}
	}
	var state CursorState
	if err := json.Unmarshal(raw, &state); err != nil {
		return CursorState{}
	}
	return state
}

func EncodeCursorState(state CursorState) []byte {
	b, _ := json.Marshal(state)
	return b
}

// RunParams carry the matcher inputs from the trigger to the worker.
type RunParams struct {
	FromDate           string          `json:"fromDate"`
	ToDate             string          `json:"toDate"`
	WalletId           int             `json:"walletId,omitempty"`
	ExternalId         string          `json:"externalId,omitempty"`
	AmountTolerancePct decimal.Decimal `json:"amountTolerancePct"`
	DateToleranceDays  int             `json:"dateToleranceDays"`
}

func DecodeRunParams(raw []byte) RunParams {
	var p RunParams
	if len(raw) == 0 {
		return p
	}
	_ = json.Unmarshal(raw, &p)
	return p
}

func EncodeRunParams(p RunParams) []byte {
	b, _ := json.Marshal(p)
	return b
}

type ConnectRequest struct {
	Provider    string `json:"provider"`
	AccountId   string `json:"accountId"`
	AccountName string `json:"accountName"`
	APIKey      string `json:"apiKey"`
	WalletId    int    `json:"walletId"`
}

type UpdateSettingsRequest struct {
	Settings SyncSettings `json:"settings"`
}

type TriggerReconcileRequest struct {
	FromDate           string  `json:"fromDate"`
	ToDate             string  `json:"toDate"`
	WalletId           int     `json:"walletId"`
	ExternalId         string  `json:"externalId"`
	AmountTolerancePct *string `json:"amountTolerancePct"`
	DateToleranceDays  *int    `json:"dateToleranceDays"`
}

type StatusResponse struct {
	Connection        ConnectionResponse `json:"connection"`
	LastSyncAt        *string            `json:"lastSyncAt"`
	LastSuccessSyncAt *string            `json:"lastSuccessSyncAt"`
	Settings          SyncSettings       `json:"settings"`
}

type ConnectionResponse struct {
	Status      string `json:"status"`
	Provider    string `json:"provider"`
	AccountId   string `json:"accountId"`
	AccountName string `json:"accountName"`
	WalletId    int    `json:"walletId"`
}

type SyncHistoryResponse struct {
	Items []SyncRunResponse `json:"items"`
}

type SyncRunResponse struct {
	ID            uint    `json:"id"`
	Status        string  `json:"status"`
	StartedAt     *string `json:"startedAt"`
	FinishedAt    *string `json:"finishedAt"`
	DurationMs    int64   `json:"durationMs"`
	RecordsSynced int     `json:"recordsSynced"`
	ErrorCount    int     `json:"errorCount"`
	TriggeredBy   string  `json:"triggeredBy"`
}

type SyncRunDetailResponse struct {
	SyncRunResponse
	Errors []SyncErrorResponse `json:"errors"`
}

type SyncErrorResponse struct {
	ID         uint   `json:"id"`
	EntityType string `json:"entityType"`
	ExternalId string `json:"externalId"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
}

type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type ReconcilePubSubPayload struct {
	RunId        uint   `json:"run_id"`
	BusinessId   string `json:"business_id"`
	ConnectionId uint   `json:"connection_id"`
}
