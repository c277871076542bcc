package appointment

import (
	"encoding/base64"
	"fmt"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/hackgods/gov-appointments/internal/department"
)

// NewReference builds DEPT-YYYYMMDDHHMM-NNNN. suffix must be in [1000, 9999].
func NewReference(dept department.ID, at time.Time, suffix int) string {
	return fmt.Sprintf("%s-%s-%04d", dept.Tag(), at.Format("200601021504"), suffix)
}

// QRCode renders ref as a PNG and returns it base64 encoded.
func QRCode(ref string) (string, error) {
	png, err := qrcode.Encode(ref, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("encode qr code: %w", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
