package certanchor

import (
	"encoding/json"
	"fmt"
)

// FingerprintPrefixLen is the number of hex characters of a fingerprint that
// may be shown publicly.
const FingerprintPrefixLen = 12

func FingerprintPrefix(fp string) string {
	if len(fp) <= FingerprintPrefixLen {
		return fp
	}
	return fp[:FingerprintPrefixLen]
}

func ComposeQRPayload(id, fingerprint, verifyEndpoint string) ([]byte, error) {
	payload := QRPayload{
		ID:             id,
		Fingerprint:    fingerprint,
		VerifyEndpoint: verifyEndpoint,
	}
	return json.Marshal(payload)
}

func ParseQRPayload(data []byte) (QRPayload, error) {
	var payload QRPayload
	err := json.Unmarshal(data, &payload)
	if err != nil {
		return QRPayload{}, fmt.Errorf("invalid qr payload: %v", err)
	}
	if payload.ID == "" && payload.Fingerprint == "" {
		return QRPayload{}, fmt.Errorf("qr payload carries neither id nor fingerprint")
	}
	return payload, nil
}

func JsonPrint(tag string, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%s: error marshaling: %v\n", tag, err)
		return
	}
	fmt.Printf("%s: %s\n", tag, string(b))
}
