//go:build e2e

package e2e

import (
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// submitAndAccept creates a nade as the test user and accepts it.
func submitAndAccept(mapName, nadeType string) string {
	resp := post(apiURL("/nades"), map[string]any{
		"map": mapName, "type": nadeType, "title": "e2e " + runID,
	}, userToken)
	ExpectWithOffset(1, resp.StatusCode).To(Equal(http.StatusCreated))
	id := parseJSONObject(resp)["id"].(string)

	resp = patch(apiURL("/moderation/nades/"+id+"/status"), map[string]any{"status": "accepted"}, moderatorToken)
	ExpectWithOffset(1, resp.StatusCode).To(Equal(http.StatusOK))
	_ = resp.Body.Close()
	return id
}

var _ = Describe("Nades", func() {
	It("moves a submission from the queue into the public listing", func() {
		resp := post(apiURL("/nades"), map[string]any{"map": "overpass", "type": "smoke"}, userToken)
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		id := parseJSONObject(resp)["id"].(string)

		Expect(ids(parseJSONArray(get(apiURL("/moderation/pending"), moderatorToken)))).To(ContainElement(id))
		Expect(ids(parseJSONArray(get(apiURL("/nades?map=overpass"), "")))).NotTo(ContainElement(id))

		resp = patch(apiURL("/moderation/nades/"+id+"/status"), map[string]any{"status": "accepted"}, moderatorToken)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		_ = resp.Body.Close()

		Expect(ids(parseJSONArray(get(apiURL("/nades?map=overpass"), "")))).To(ContainElement(id))
		Expect(ids(parseJSONArray(get(apiURL("/nades"), "")))).To(ContainElement(id))
	})

	It("drops a deleted nade from listings", func() {
		id := submitAndAccept("train", "flash")
		Expect(ids(parseJSONArray(get(apiURL("/nades?map=train&type=flash"), "")))).To(ContainElement(id))

		resp := del(apiURL("/nades/"+id), userToken)
		Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
		_ = resp.Body.Close()

		Expect(ids(parseJSONArray(get(apiURL("/nades?map=train&type=flash"), "")))).NotTo(ContainElement(id))
	})

	It("ranks the winner of a vote first", func() {
		a := submitAndAccept("cache", "molotov")
		b := submitAndAccept("cache", "molotov")

		resp := post(apiURL("/nades/vote"), map[string]any{"nadeA": a, "nadeB": b, "winner": b}, otherToken)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		_ = resp.Body.Close()

		listed := ids(parseJSONArray(get(apiURL("/nades?map=cache&type=molotov"), "")))
		Expect(listed).To(ContainElements(a, b))
		Expect(indexOf(listed, b)).To(BeNumerically("<", indexOf(listed, a)))
	})
})

func indexOf(items []string, want string) int {
	for i, it := range items {
		if it == want {
			return i
		}
	}
	return -1
}
