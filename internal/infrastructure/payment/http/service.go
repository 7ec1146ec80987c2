package httppayment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vigil-btc/vigild/internal/core/domain"
	"github.com/vigil-btc/vigild/internal/core/ports"
)

// service talks to the external payment daemon over HTTP. The caller bounds
// each send with a context deadline; a timeout or transport failure is an
// error, never an assumed success.
type service struct {
	baseUrl string
	client  *http.Client
	policy  domain.AddressPolicy
}

func NewService(
	paymentAddr string, policy domain.AddressPolicy,
) (ports.PaymentService, error) {
	if len(paymentAddr) <= 0 {
		return nil, fmt.Errorf("missing payment subsystem address")
	}
	baseUrl := strings.TrimSuffix(paymentAddr, "/")
	if !strings.HasPrefix(baseUrl, "http://") && !strings.HasPrefix(baseUrl, "https://") {
		baseUrl = "http://" + baseUrl
	}

	return &service{
		baseUrl: baseUrl,
		client:  &http.Client{},
		policy:  policy,
	}, nil
}

type sendOutput struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
}

type sendRequest struct {
	SourceAddress string       `json:"sourceAddress"`
	Outputs       []sendOutput `json:"outputs"`
}

type sendResponse struct {
	Txid  string `json:"txid"`
	Error string `json:"error,omitempty"`
}

func (s *service) Send(
	ctx context.Context, sourceAddress string, outputs []ports.TxOutput,
) (string, error) {
	body := sendRequest{SourceAddress: sourceAddress}
	for _, out := range outputs {
		body.Outputs = append(body.Outputs, sendOutput{
			Address: out.Address,
			Amount:  out.Amount,
		})
	}

	buf, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, fmt.Sprintf("%s/v1/send", s.baseUrl), bytes.NewReader(buf),
	)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", ports.SendError{Msg: err.Error()}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", ports.SendError{Msg: err.Error()}
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return "", ports.SendError{Rejected: true, Msg: errorMessage(payload, resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", ports.SendError{Msg: errorMessage(payload, resp.StatusCode)}
	}

	var decoded sendResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", ports.SendError{Msg: fmt.Sprintf("malformed response: %s", err)}
	}
	if len(decoded.Txid) <= 0 {
		return "", ports.SendError{Msg: "response is missing txid"}
	}

	return decoded.Txid, nil
}

func (s *service) ValidateAddress(address string) bool {
	return s.policy.Valid(address)
}

func (s *service) Close() {
	s.client.CloseIdleConnections()
}

func errorMessage(payload []byte, statusCode int) string {
	var decoded sendResponse
	if err := json.Unmarshal(payload, &decoded); err == nil && len(decoded.Error) > 0 {
		return decoded.Error
	}
	return fmt.Sprintf("unexpected status %d", statusCode)
}
