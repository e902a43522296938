package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"seedtrace/internal/identity"
	"seedtrace/internal/identity/handler/mocks"
	dErrors "seedtrace/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service
type IdentityHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestIdentityHandlerSuite(t *testing.T) {
	suite.Run(t, new(IdentityHandlerSuite))
}

func (s *IdentityHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.router = chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
}

func (s *IdentityHandlerSuite) do(method, target string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(method, target, bytes.NewReader(body)))
	return w
}

func samplePayload() identity.QRPayload {
	return identity.QRPayload{
		QRID:       "QR-1",
		EntityType: "lot",
		EntityID:   "lot-1",
		LotNumber:  "SD-20250301-0001",
		VerifyURL:  "https://trace.example.com/qr/QR-1/verify",
		IssuedAt:   time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (s *IdentityHandlerSuite) TestGet() {
	s.service.EXPECT().Get(gomock.Any(), "QR-1").Return(&identity.QRIdentity{ID: "QR-1", EntityID: "lot-1"}, nil)
	s.service.EXPECT().Get(gomock.Any(), "QR-2").Return(nil, dErrors.New(dErrors.CodeNotFound, "qr code not found"))

	w := s.do(http.MethodGet, "/qr/QR-1", nil)
	s.Equal(http.StatusOK, w.Code)
	var qr identity.QRIdentity
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &qr))
	s.Equal("lot-1", qr.EntityID)

	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/qr/QR-2", nil).Code)
}

func (s *IdentityHandlerSuite) TestVerify() {
	s.Run("valid", func() {
		p := samplePayload()
		s.service.EXPECT().Verify(gomock.Any(), "QR-1").Return(&identity.VerifyResult{Valid: true, Data: &p}, nil)

		w := s.do(http.MethodGet, "/qr/QR-1/verify", nil)
		s.Equal(http.StatusOK, w.Code)
		var result identity.VerifyResult
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &result))
		s.True(result.Valid)
		s.Equal("lot-1", result.Data.EntityID)
	})

	s.Run("unknown ids are reported in the body", func() {
		s.service.EXPECT().Verify(gomock.Any(), "nope").Return(&identity.VerifyResult{Valid: false, Reason: "unknown qr id"}, nil)

		w := s.do(http.MethodGet, "/qr/nope/verify", nil)
		s.Equal(http.StatusOK, w.Code)
		s.JSONEq(`{"valid":false,"reason":"unknown qr id"}`, w.Body.String())
	})

	s.Run("storage failure is hidden", func() {
		s.service.EXPECT().Verify(gomock.Any(), "QR-9").Return(nil, dErrors.New(dErrors.CodeInternal, "connection refused"))

		w := s.do(http.MethodGet, "/qr/QR-9/verify", nil)
		s.Equal(http.StatusInternalServerError, w.Code)
		s.NotContains(w.Body.String(), "connection refused")
	})
}

func (s *IdentityHandlerSuite) TestScan() {
	p := samplePayload()
	content, err := json.Marshal(p)
	s.Require().NoError(err)

	s.Run("verifies scanned content", func() {
		s.service.EXPECT().Verify(gomock.Any(), "QR-1").Return(&identity.VerifyResult{Valid: true, Data: &p}, nil)
		body, _ := json.Marshal(scanRequest{Content: string(content)})

		w := s.do(http.MethodPost, "/qr/scan", body)
		s.Equal(http.StatusOK, w.Code)
		s.Contains(w.Body.String(), `"valid":true`)
	})

	s.Run("content naming another entity is rejected", func() {
		forged := p
		forged.EntityID = "lot-2"
		forgedContent, _ := json.Marshal(forged)
		s.service.EXPECT().Verify(gomock.Any(), "QR-1").Return(&identity.VerifyResult{Valid: true, Data: &p}, nil)
		body, _ := json.Marshal(scanRequest{Content: string(forgedContent)})

		w := s.do(http.MethodPost, "/qr/scan", body)
		s.Equal(http.StatusOK, w.Code)
		s.Contains(w.Body.String(), `"valid":false`)
	})

	s.Run("garbage content", func() {
		body, _ := json.Marshal(scanRequest{Content: "hello"})
		s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/qr/scan", body).Code)
	})
}

var _ Service = (*identity.Service)(nil)
