//go:build e2e

package e2e

import (
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Errors", func() {
	DescribeTable("status codes",
		func(method, path string, body any, token func() string, want int) {
			resp := send(method, apiURL(path), body, token())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(want))
		},
		Entry("unknown route", http.MethodGet, "/does-not-exist", nil, func() string { return "" }, http.StatusNotFound),
		Entry("unknown nade", http.MethodGet, "/nades/00000000-0000-0000-0000-000000000000", nil, func() string { return "" }, http.StatusNotFound),
		Entry("anonymous submission", http.MethodPost, "/nades", map[string]any{"map": "mirage", "type": "smoke"}, func() string { return "" }, http.StatusUnauthorized),
		Entry("unknown map", http.MethodPost, "/nades", map[string]any{"map": "de_nowhere", "type": "smoke"}, func() string { return userToken }, http.StatusBadRequest),
		Entry("moderation as a user", http.MethodGet, "/moderation/pending", nil, func() string { return userToken }, http.StatusForbidden),
		Entry("bad limit", http.MethodGet, "/nades?limit=lots", nil, func() string { return "" }, http.StatusBadRequest),
	)
})
