package service

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

type QRGenerator interface {
	Generate(tableID string) ([]byte, error)
}

type DefaultQRGenerator struct {
	BaseURL string
}

func (g DefaultQRGenerator) Link(tableID string) string {
	return fmt.Sprintf("%s/table/%s", strings.TrimRight(g.BaseURL, "/"), url.PathEscape(tableID))
}

func (g DefaultQRGenerator) Generate(tableID string) ([]byte, error) {
	return qrcode.Encode(g.Link(tableID), qrcode.Medium, 256)
}
