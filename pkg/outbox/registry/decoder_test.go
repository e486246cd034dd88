package registry

import (
	"encoding/json"
	"testing"

	"github.com/duchuyngn/muaban-backend/pkg/enums"
)

func TestDecoderRegistry(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventPayoutBillPaid, 1, func(payload json.RawMessage) (interface{}, error) {
		var decoded map[string]string
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	})

	input := json.RawMessage(`{"reference":"bank-7781"}`)
	output, err := reg.Decode(enums.EventPayoutBillPaid, 1, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outMap, ok := output.(map[string]string); !ok || outMap["reference"] != "bank-7781" {
		t.Fatalf("unexpected output %+v", output)
	}
}
