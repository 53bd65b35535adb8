package bbce

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ID is an identifier the API sends either as a JSON string or a JSON number.
type ID string

// UnmarshalJSON accepts "123", 123 and null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("bbce: id %s is neither string nor number", b)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Session holds the tokens returned by the login endpoint.
type Session struct {
	UserID       ID     `json:"userId"`
	IDToken      string `json:"idToken"`
	CompanyID    ID     `json:"companyId"`
	RefreshToken string `json:"refreshToken"`
}

// Wallet is a trading wallet of the logged-in company.
type Wallet struct {
	ID   ID     `json:"id"`
	Name string `json:"name,omitempty"`
}

// Ticker is a negotiable product.
type Ticker struct {
	ID          ID     `json:"id"`
	Description string `json:"description"`
}

type tickersResponse struct {
	Tickers []Ticker `json:"tickers"`
}

// Deal is one row of the all-deals report as sent by the API. Numeric
// fields are kept raw so ingestion can reject malformed values explicitly
// instead of coercing them.
type Deal struct {
	ID                  ID              `json:"id"`
	CreatedAt           string          `json:"createdAt"`
	ProductID           ID              `json:"productId"`
	UnitPrice           json.RawMessage `json:"unitPrice"`
	Quantity            json.RawMessage `json:"quantity"`
	OriginOperationType string          `json:"originOperationType"`
	Status              string          `json:"status"`
}
