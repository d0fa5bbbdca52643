package services

import (
	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"

	"referral-tg-admin/internal/constants"
)

// QRService renders referral links as QR codes
type QRService struct {
	logger *logrus.Logger
}

// NewQRService creates a new QR code service
func NewQRService(logger *logrus.Logger) *QRService {
	return &QRService{
		logger: logger,
	}
}

// GenerateQR generates a PNG QR code for the given text
func (s *QRService) GenerateQR(text string) ([]byte, error) {
	s.logger.Debugf("Generating QR code for text: %s", text)

	qr, err := qrcode.Encode(text, qrcode.Medium, constants.QRCodeSize)
	if err != nil {
		s.logger.Errorf("Failed to generate QR code: %v", err)
		return nil, err
	}

	return qr, nil
}
