package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	_ "github.com/netcfgd/netcfgd/internal/test"
	perrors "github.com/netcfgd/netcfgd/pkg/errors"
	"github.com/netcfgd/netcfgd/pkg/snapshot"
)

func TestSnapshotHandler(t *testing.T) {
	testCases := []struct {
		name             string
		path             string
		setupMock        func(source *snapshot.MockSource)
		expectedCode     int
		expectedResponse string
		contentType      string
	}{
		{
			name: "lists every link",
			path: "/v1/links",
			setupMock: func(source *snapshot.MockSource) {
				source.EXPECT().Links(gomock.Any(), 0).Return([]snapshot.Link{
					{Index: 1, Name: "lo", Type: "loopback", Up: true, Connected: true, MTU: 65536},
				}, nil)
			},
			expectedCode:     200,
			expectedResponse: `[{"ifindex":1,"name":"lo","type":"loopback","up":true,"connected":true,"arp":false,"mtu":65536}]`,
			contentType:      "application/json",
		},
		{
			name: "filters addresses by ifindex",
			path: "/v1/addresses?ifindex=2",
			setupMock: func(source *snapshot.MockSource) {
				source.EXPECT().Addresses(gomock.Any(), 2).Return([]snapshot.Address{
					{Index: 2, Family: snapshot.FamilyIPv4, Address: "192.0.2.1", Plen: 24},
				}, nil)
			},
			expectedCode:     200,
			expectedResponse: `[{"ifindex":2,"family":"inet","address":"192.0.2.1","plen":24}]`,
			contentType:      "application/json",
		},
		{
			name: "empty result is an empty list",
			path: "/v1/routes",
			setupMock: func(source *snapshot.MockSource) {
				source.EXPECT().Routes(gomock.Any(), 0).Return(nil, nil)
			},
			expectedCode:     200,
			expectedResponse: `[]`,
			contentType:      "application/json",
		},
		{
			name:             "rejects a malformed ifindex",
			path:             "/v1/routes?ifindex=eth0",
			setupMock:        func(source *snapshot.MockSource) {},
			expectedCode:     400,
			expectedResponse: `invalid ifindex "eth0"`,
		},
		{
			name:             "rejects a negative ifindex",
			path:             "/v1/links?ifindex=-1",
			setupMock:        func(source *snapshot.MockSource) {},
			expectedCode:     400,
			expectedResponse: "invalid ifindex",
		},
		{
			name: "unknown link is a 404",
			path: "/v1/addresses?ifindex=42",
			setupMock: func(source *snapshot.MockSource) {
				source.EXPECT().Addresses(gomock.Any(), 42).
					Return(nil, perrors.NewNotFoundError(perrors.OpLinkGet, "link(42)", errors.New("no such link")))
			},
			expectedCode:     404,
			expectedResponse: "not found",
		},
		{
			name: "untyped failures are a 500",
			path: "/v1/links",
			setupMock: func(source *snapshot.MockSource) {
				source.EXPECT().Links(gomock.Any(), 0).Return(nil, assert.AnError)
			},
			expectedCode:     500,
			expectedResponse: assert.AnError.Error(),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewWithT(t)
			source := snapshot.NewMockSource(gomock.NewController(t))
			tc.setupMock(source)

			mux := http.NewServeMux()
			NewSnapshotHandler(source).ConfigureHandler(func(pattern string, handlerFunc http.HandlerFunc) {
				mux.HandleFunc(pattern, handlerFunc)
			})

			recorder := httptest.NewRecorder()
			mux.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, tc.path, nil))

			g.Expect(recorder.Code).To(Equal(tc.expectedCode))
			g.Expect(recorder.Body.String()).To(ContainSubstring(tc.expectedResponse))
			if tc.contentType != "" {
				g.Expect(recorder.Header().Get("Content-Type")).To(Equal(tc.contentType))
			}
		})
	}
}
