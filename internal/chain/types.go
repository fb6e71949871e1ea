// Package chain talks to a condenser-style JSON-RPC node and models the
// slice of block data the synchronizer needs. The chain is untrusted
// input; these types only carry the data, validation happens in sync.
package chain

import (
	"encoding/json"
	"fmt"
)

// Block is the condenser get_block result, reduced to the fields the
// synchronizer reads.
type Block struct {
	Previous     string        `json:"previous"`
	Timestamp    string        `json:"timestamp"`
	Witness      string        `json:"witness"`
	Transactions []Transaction `json:"transactions"`
}

type Transaction struct {
	TransactionID string      `json:"transaction_id"`
	Operations    []Operation `json:"operations"`
}

// Operation is the two-element [type, payload] pair the condenser API
// encodes operations as.
type Operation struct {
	Type  string
	Value json.RawMessage
}

func (o *Operation) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("operation: expected [type, payload] pair, got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &o.Type); err != nil {
		return fmt.Errorf("operation type: %w", err)
	}
	o.Value = pair[1]
	return nil
}

func (o Operation) MarshalJSON() ([]byte, error) {
	typ, err := json.Marshal(o.Type)
	if err != nil {
		return nil, err
	}
	value := o.Value
	if value == nil {
		value = json.RawMessage("null")
	}
	return json.Marshal([]json.RawMessage{typ, value})
}

// Comment is the payload of a "comment" operation. json_metadata arrives
// as a string of embedded JSON.
type Comment struct {
	ParentAuthor   string `json:"parent_author"`
	ParentPermlink string `json:"parent_permlink"`
	Author         string `json:"author"`
	Permlink       string `json:"permlink"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	JSONMetadata   string `json:"json_metadata"`
}

// VoteMetadata is the json_metadata schema written on vote comments.
type VoteMetadata struct {
	App         string   `json:"app"`
	ContentType string   `json:"content_type"`
	Tags        []string `json:"tags"`
	Votes       []string `json:"votes"`
}
