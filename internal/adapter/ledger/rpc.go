package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/gorilla/websocket"
)

// ErrMalformedResponse means the ledger answered with something that is not
// a valid reply. Retrying will not change the answer.
var ErrMalformedResponse = errors.New("malformed ledger response")

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// call sends one request and waits for the reply with the same id. Messages
// with other ids (subscription notifications) are skipped.
func call(conn *websocket.Conn, id uint64, method string, params ...any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}

	req := rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	if err := conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("write %s: %w", method, err)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", method, err)
		}

		var resp rpcResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, method, err)
		}
		if resp.ID != id {
			continue
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("%s: %w", method, resp.Error)
		}
		return resp.Result, nil
	}
}

func decodeBlockHash(raw json.RawMessage) (string, error) {
	var hash string
	if err := json.Unmarshal(raw, &hash); err != nil || hash == "" {
		return "", fmt.Errorf("%w: chain head is not a block hash: %s", ErrMalformedResponse, raw)
	}
	return hash, nil
}

// decodeDividend maps a storage lookup result: null is absent, an integer is
// the value, anything else is malformed.
func decodeDividend(raw json.RawMessage) (int64, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false, nil
	}

	if c := raw[0]; c != '-' && (c < '0' || c > '9') {
		return 0, false, fmt.Errorf("%w: dividend is not an integer: %s", ErrMalformedResponse, raw)
	}

	value, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: dividend is not an int64: %s", ErrMalformedResponse, raw)
	}
	return value, true, nil
}
