package api_test

import (
	"context"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/csgonades/nade-api/api"
	"github.com/csgonades/nade-api/api/handler"
	"github.com/csgonades/nade-api/auth"
	"github.com/csgonades/nade-api/config"
	"github.com/csgonades/nade-api/engagement"
	"github.com/csgonades/nade-api/nade"
)

var _ = Describe("Router", func() {
	var (
		r       http.Handler
		m       *auth.Manager
		cfg     config.Config
		alice   map[string]string
		bob     map[string]string
		modHdr  map[string]string
		newPost = func(mapName, nadeType string) map[string]any {
			return map[string]any{"map": mapName, "type": nadeType, "title": "window smoke"}
		}
	)

	build := func() {
		repo := newRepository()
		feed := handler.NewFeedHub()
		DeferCleanup(feed.Shutdown)
		var stop func()
		r, stop = api.NewRouter(api.Deps{
			Store:     db,
			Nades:     repo,
			Favorites: engagement.NewFavorites(db, repo),
			Comments:  engagement.NewComments(db, repo),
			Auth:      m,
			Feed:      feed,
		}, cfg)
		DeferCleanup(stop)
	}

	// submit creates a nade as alice and returns it.
	submit := func(mapName, nadeType string) nade.Nade {
		w := doPost(r, "/nades", newPost(mapName, nadeType), alice)
		Expect(w.Code).To(Equal(http.StatusCreated), w.Body.String())
		return decode[nade.Nade](w)
	}

	// accept moves a nade out of the moderation queue.
	accept := func(id string, extra map[string]any) nade.Nade {
		body := map[string]any{"status": "accepted"}
		for k, v := range extra {
			body[k] = v
		}
		w := doPatch(r, "/moderation/nades/"+id+"/status", body, modHdr)
		Expect(w.Code).To(Equal(http.StatusOK), w.Body.String())
		return decode[nade.Nade](w)
	}

	BeforeEach(func() {
		cleanDB()
		m = newAuthManager()
		cfg = config.Config{ExternalURL: "https://csgonades.test"}
		alice = bearer(m, "alice", auth.RoleUser)
		bob = bearer(m, "bob", auth.RoleUser)
		modHdr = bearer(m, "mod", auth.RoleModerator)
		build()
	})

	Describe("probes", func() {
		It("serves liveness, readiness and metrics without auth", func() {
			Expect(doGet(r, "/health").Code).To(Equal(http.StatusOK))
			Expect(doGet(r, "/ready").Code).To(Equal(http.StatusOK))
			Expect(doGet(r, "/metrics").Code).To(Equal(http.StatusOK))
		})

		It("returns JSON 404 for unknown routes", func() {
			w := doGet(r, "/nope")
			Expect(w.Code).To(Equal(http.StatusNotFound))
			Expect(w.Body.String()).To(ContainSubstring("endpoint not found"))
		})

		It("echoes a request id", func() {
			w := doGet(r, "/health")
			Expect(w.Header().Get("X-Request-Id")).NotTo(BeEmpty())
		})
	})

	Describe("authentication", func() {
		It("rejects anonymous writes", func() {
			Expect(doPost(r, "/nades", newPost("mirage", "smoke")).Code).To(Equal(http.StatusUnauthorized))
		})

		It("rejects tokens signed with another secret", func() {
			other, err := auth.NewManager("another-secret", time.Hour)
			Expect(err).NotTo(HaveOccurred())
			w := doPost(r, "/nades", newPost("mirage", "smoke"), bearer(other, "alice", auth.RoleUser))
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})

		It("keeps moderation routes from regular users", func() {
			Expect(doGet(r, "/moderation/pending", alice).Code).To(Equal(http.StatusForbidden))
			Expect(doGet(r, "/cache/stats", alice).Code).To(Equal(http.StatusForbidden))
		})
	})

	Describe("submission and moderation", func() {
		It("keeps a new nade out of public listings until accepted", func() {
			n := submit("mirage", "smoke")
			Expect(n.Status).To(Equal(nade.StatusPending))
			Expect(n.Owner.UserID).To(Equal("alice"))

			Expect(decode[[]nade.Nade](doGet(r, "/nades?map=mirage"))).To(BeEmpty())
			Expect(doGet(r, "/nades/"+n.ID).Code).To(Equal(http.StatusNotFound))
			Expect(doGet(r, "/nades/"+n.ID, alice).Code).To(Equal(http.StatusOK))

			pending := decode[[]nade.Nade](doGet(r, "/moderation/pending", modHdr))
			Expect(pending).To(HaveLen(1))

			accepted := accept(n.ID, map[string]any{"slug": "mirage-window-smoke"})
			Expect(accepted.Status).To(Equal(nade.StatusAccepted))
			Expect(accepted.CreatedAt).NotTo(BeTemporally("<", n.CreatedAt))

			listed := decode[[]nade.Nade](doGet(r, "/nades?map=mirage"))
			Expect(listed).To(HaveLen(1))
			Expect(listed[0].ID).To(Equal(n.ID))

			w := doGet(r, "/nades/slug/mirage-window-smoke")
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decode[nade.Nade](w).ID).To(Equal(n.ID))

			recent := decode[[]nade.Nade](doGet(r, "/nades"))
			Expect(recent).To(HaveLen(1))
		})

		It("rejects a slug that is already taken", func() {
			a := submit("mirage", "smoke")
			b := submit("mirage", "flash")
			accept(a.ID, map[string]any{"slug": "jungle"})

			w := doPatch(r, "/moderation/nades/"+b.ID+"/status",
				map[string]any{"status": "accepted", "slug": "jungle"}, modHdr)
			Expect(w.Code).To(Equal(http.StatusConflict))
		})

		It("rejects unknown maps", func() {
			w := doPost(r, "/nades", newPost("de_nowhere", "smoke"), alice)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("sends a declined nade back to the queue when its owner edits it", func() {
			n := submit("inferno", "molotov")
			w := doPatch(r, "/moderation/nades/"+n.ID+"/status",
				map[string]any{"status": "declined", "statusInfo": "video missing"}, modHdr)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decode[[]nade.Nade](doGet(r, "/moderation/declined", modHdr))).To(HaveLen(1))

			w = doPatch(r, "/nades/"+n.ID, map[string]any{"title": "banana molly"}, alice)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decode[nade.Nade](w).Status).To(Equal(nade.StatusPending))
		})
	})

	Describe("ownership", func() {
		var n nade.Nade

		BeforeEach(func() {
			n = accept(submit("nuke", "flash").ID, nil)
		})

		It("lets the owner edit content", func() {
			w := doPatch(r, "/nades/"+n.ID, map[string]any{"title": "outside flash"}, alice)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decode[nade.Nade](w).Title).To(Equal("outside flash"))
		})

		It("forbids other users from editing or deleting", func() {
			Expect(doPatch(r, "/nades/"+n.ID, map[string]any{"title": "mine now"}, bob).Code).
				To(Equal(http.StatusForbidden))
			Expect(doDelete(r, "/nades/"+n.ID, bob).Code).To(Equal(http.StatusForbidden))
		})

		It("reserves the slug for moderators", func() {
			Expect(doPatch(r, "/nades/"+n.ID, map[string]any{"slug": "my-slug"}, alice).Code).
				To(Equal(http.StatusForbidden))
			Expect(doPatch(r, "/nades/"+n.ID, map[string]any{"slug": "my-slug"}, modHdr).Code).
				To(Equal(http.StatusOK))
		})

		It("soft deletes and lists the nade for moderators", func() {
			Expect(doDelete(r, "/nades/"+n.ID, alice).Code).To(Equal(http.StatusNoContent))
			Expect(decode[[]nade.Nade](doGet(r, "/nades?map=nuke"))).To(BeEmpty())
			Expect(decode[[]nade.Nade](doGet(r, "/moderation/deleted", modHdr))).To(HaveLen(1))
		})

		It("purges a nade for good", func() {
			Expect(doDelete(r, "/moderation/nades/"+n.ID, modHdr).Code).To(Equal(http.StatusNoContent))
			Expect(doGet(r, "/nades/"+n.ID, modHdr).Code).To(Equal(http.StatusNotFound))
		})

		It("hides non-public nades from other users' profile listings", func() {
			submit("nuke", "smoke")
			Expect(decode[[]nade.Nade](doGet(r, "/users/alice/nades"))).To(HaveLen(1))
			Expect(decode[[]nade.Nade](doGet(r, "/users/alice/nades", alice))).To(HaveLen(2))
		})

		It("reattributes nades across a user's profile", func() {
			w := doRequest(r, http.MethodPut, "/moderation/users/alice/owner",
				map[string]any{"nickname": "Alice", "avatar": "https://cdn.test/a.png"}, modHdr)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decode[map[string]int](w)["updated"]).To(Equal(1))

			got := decode[nade.Nade](doGet(r, "/nades/"+n.ID))
			Expect(got.Owner.Nickname).To(Equal("Alice"))
		})
	})

	Describe("engagement", func() {
		var n nade.Nade

		BeforeEach(func() {
			n = accept(submit("dust2", "smoke").ID, nil)
		})

		It("counts favorites on the nade", func() {
			Expect(doPost(r, "/nades/"+n.ID+"/favorite", nil, bob).Code).To(Equal(http.StatusOK))
			Expect(doPost(r, "/nades/"+n.ID+"/favorite", nil, bob).Code).To(Equal(http.StatusOK))

			Expect(decode[nade.Nade](doGet(r, "/nades/"+n.ID)).FavoriteCount).To(Equal(1))
			Expect(decode[[]engagement.Favorite](doGet(r, "/favorites", bob))).To(HaveLen(1))

			Expect(doDelete(r, "/nades/"+n.ID+"/favorite", bob).Code).To(Equal(http.StatusNoContent))
			Expect(decode[nade.Nade](doGet(r, "/nades/"+n.ID)).FavoriteCount).To(Equal(0))
		})

		It("lets authors and moderators remove comments", func() {
			w := doPost(r, "/nades/"+n.ID+"/comments", map[string]any{"message": "works on 128 tick"}, bob)
			Expect(w.Code).To(Equal(http.StatusCreated))
			c := decode[engagement.Comment](w)

			Expect(decode[[]engagement.Comment](doGet(r, "/nades/"+n.ID+"/comments"))).To(HaveLen(1))
			Expect(decode[nade.Nade](doGet(r, "/nades/"+n.ID)).CommentCount).To(Equal(1))

			Expect(doPatch(r, "/comments/"+c.ID, map[string]any{"message": "edited"}, alice).Code).
				To(Equal(http.StatusForbidden))
			Expect(doPatch(r, "/comments/"+c.ID, map[string]any{"message": "edited"}, bob).Code).
				To(Equal(http.StatusOK))

			Expect(doDelete(r, "/comments/"+c.ID, alice).Code).To(Equal(http.StatusForbidden))
			Expect(doDelete(r, "/comments/"+c.ID, modHdr).Code).To(Equal(http.StatusNoContent))
			Expect(decode[nade.Nade](doGet(r, "/nades/"+n.ID)).CommentCount).To(Equal(0))
		})
	})

	Describe("voting", func() {
		It("moves the winner above the loser", func() {
			a := accept(submit("ancient", "smoke").ID, nil)
			b := accept(submit("ancient", "smoke").ID, nil)

			w := doPost(r, "/nades/vote", map[string]any{"nadeA": a.ID, "nadeB": b.ID, "winner": b.ID}, bob)
			Expect(w.Code).To(Equal(http.StatusOK), w.Body.String())
			res := decode[nade.VoteResult](w)
			Expect(*res.B.EloScore).To(BeNumerically(">", *res.A.EloScore))

			listed := decode[[]nade.Nade](doGet(r, "/nades?map=ancient&type=smoke"))
			Expect(listed).To(HaveLen(2))
			Expect(listed[0].ID).To(Equal(b.ID))
		})

		It("rejects a winner outside the pair", func() {
			a := accept(submit("ancient", "smoke").ID, nil)
			b := accept(submit("ancient", "smoke").ID, nil)
			w := doPost(r, "/nades/vote", map[string]any{"nadeA": a.ID, "nadeB": b.ID, "winner": "other"}, bob)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("cache stats", func() {
		It("reports hit counters and the video lookup state", func() {
			n := accept(submit("train", "hegrenade").ID, nil)
			doGet(r, "/nades/"+n.ID)
			doGet(r, "/nades/"+n.ID)

			w := doGet(r, "/cache/stats", modHdr)
			Expect(w.Code).To(Equal(http.StatusOK))
			body := decode[map[string]any](w)
			Expect(body["videoLookups"]).To(Equal("disabled"))
			Expect(body["items"]).To(HaveKey("hits"))
		})
	})

	Describe("write throttling", func() {
		It("returns 429 once an IP exceeds its write budget", func() {
			cfg.WriteMaxRequests = 1
			cfg.WriteWindow = time.Minute
			cfg.WriteBanDuration = time.Minute
			build()

			Expect(doPost(r, "/nades", newPost("mirage", "smoke"), alice).Code).To(Equal(http.StatusCreated))
			Expect(doPost(r, "/nades", newPost("mirage", "smoke"), alice).Code).To(Equal(http.StatusTooManyRequests))
			// Reads are not throttled.
			Expect(doGet(r, "/nades?map=mirage").Code).To(Equal(http.StatusOK))
		})
	})

	Describe("CORS", func() {
		It("allows credentials for the site origin", func() {
			w := doGet(r, "/health", map[string]string{"Origin": "https://csgonades.test"})
			Expect(w.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://csgonades.test"))
			Expect(w.Header().Get("Access-Control-Allow-Credentials")).To(Equal("true"))
		})
	})

	It("sweeps through a started sweeper without error", func() {
		s := api.NewDeletedSweeper(newRepository(), config.Config{DeletedGracePeriod: time.Hour, SweepInterval: time.Hour})
		s.Start(context.Background())
		s.Stop()
	})
})
