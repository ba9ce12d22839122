package handler_test

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gin-gonic/gin"

	"github.com/csgonades/nade-api/api/handler"
	"github.com/csgonades/nade-api/auth"
	"github.com/csgonades/nade-api/nade"
	"github.com/csgonades/nade-api/vidmeta"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

var _ = Describe("NadeHandler", func() {
	var (
		repo   *nade.Repository
		videos *fakeVideos
		images *fakeImages
		r      *gin.Engine
		user   map[string]string
	)

	wire := func(v handler.VideoLookup, i handler.ImageStore) {
		h := handler.NewNadeHandler(repo, v, i, nil)
		r = newEngine()
		r.GET("/nades", h.List)
		r.GET("/nades/:id", h.Get)
		r.POST("/nades", h.Create)
		r.PATCH("/nades/:id", h.Update)
		r.POST("/me/nades/profile", h.SyncProfile)
	}

	BeforeEach(func() {
		cleanDB()
		repo = newRepository()
		videos = &fakeVideos{
			known: map[string]*vidmeta.Metadata{
				"abc123": {ID: "abc123", ThumbnailURL: "https://thumbs.test/abc123.jpg", DurationSeconds: 14},
			},
			err: vidmeta.ErrVideoNotFound,
		}
		images = &fakeImages{}
		user = bearer("alice", auth.RoleUser)
		wire(videos, images)
	})

	Describe("Create", func() {
		It("stores video metadata for a known video", func() {
			w := doPost(r, "/nades", map[string]any{"map": "mirage", "type": "smoke", "videoId": "abc123"}, user)
			Expect(w.Code).To(Equal(http.StatusCreated), w.Body.String())
			n := decode[nade.Nade](w)
			Expect(n.Video.ThumbnailURL).To(Equal("https://thumbs.test/abc123.jpg"))
			Expect(n.Video.DurationSeconds).To(Equal(14))
			Expect(n.Owner.Nickname).To(Equal("nick-alice"))
		})

		It("rejects a video the host does not know", func() {
			w := doPost(r, "/nades", map[string]any{"map": "mirage", "type": "smoke", "videoId": "missing"}, user)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(w.Body.String()).To(ContainSubstring("video not found"))
		})

		It("keeps the submission when the video host is unavailable", func() {
			videos.err = vidmeta.ErrUnavailable
			w := doPost(r, "/nades", map[string]any{"map": "mirage", "type": "smoke", "videoId": "later"}, user)
			Expect(w.Code).To(Equal(http.StatusCreated))
			n := decode[nade.Nade](w)
			Expect(n.Video.ID).To(Equal("later"))
			Expect(n.Video.ThumbnailURL).To(BeEmpty())
		})

		It("stores an uploaded image", func() {
			img := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader)
			w := doPost(r, "/nades", map[string]any{"map": "mirage", "type": "flash", "image": img}, user)
			Expect(w.Code).To(Equal(http.StatusCreated), w.Body.String())
			Expect(decode[nade.Nade](w).ImageURL).To(Equal("https://img.test/image/png"))
			Expect(images.saved).To(HaveKeyWithValue("https://img.test/image/png", pngHeader))
		})

		It("rejects an image that is not one", func() {
			w := doPost(r, "/nades", map[string]any{"map": "mirage", "type": "flash", "image": "hello world"}, user)
			Expect(w.Code).To(Equal(http.StatusUnsupportedMediaType))
		})

		It("returns 500 when the image cannot be stored", func() {
			images.err = errors.New("disk full")
			img := base64.StdEncoding.EncodeToString(pngHeader)
			w := doPost(r, "/nades", map[string]any{"map": "mirage", "type": "flash", "image": img}, user)
			Expect(w.Code).To(Equal(http.StatusInternalServerError))
		})

		It("rejects images when uploads are disabled", func() {
			wire(nil, nil)
			img := base64.StdEncoding.EncodeToString(pngHeader)
			w := doPost(r, "/nades", map[string]any{"map": "mirage", "type": "flash", "image": img}, user)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("skips video lookups when none are configured", func() {
			wire(nil, images)
			w := doPost(r, "/nades", map[string]any{"map": "mirage", "type": "smoke", "videoId": "missing"}, user)
			Expect(w.Code).To(Equal(http.StatusCreated))
		})

		It("requires map and type", func() {
			w := doPost(r, "/nades", map[string]any{"map": "mirage"}, user)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("List", func() {
		It("rejects a malformed limit", func() {
			Expect(doGet(r, "/nades?limit=many").Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects an unknown game mode", func() {
			Expect(doGet(r, "/nades?map=mirage&gameMode=cs16").Code).To(Equal(http.StatusBadRequest))
		})

		It("caps the recent list at the requested limit", func() {
			ctx := context.Background()
			for i := 0; i < 3; i++ {
				n, err := repo.Save(ctx, nade.CreateInput{Map: "vertigo", Type: nade.TypeSmoke, Owner: nade.Owner{UserID: "alice"}})
				Expect(err).NotTo(HaveOccurred())
				_, err = repo.Update(ctx, n.ID, nade.Patch{Status: ptr(nade.StatusAccepted)}, nade.UpdateOptions{})
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(decode[[]nade.Nade](doGet(r, "/nades?limit=2"))).To(HaveLen(2))
		})
	})

	Describe("Get", func() {
		It("returns 404 for an unknown id", func() {
			Expect(doGet(r, "/nades/missing").Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("Update", func() {
		It("only looks up the video when it changes", func() {
			w := doPost(r, "/nades", map[string]any{"map": "mirage", "type": "smoke", "videoId": "abc123"}, user)
			n := decode[nade.Nade](w)

			delete(videos.known, "abc123")
			w = doPatch(r, "/nades/"+n.ID, map[string]any{"videoId": "abc123", "title": "xbox smoke"}, user)
			Expect(w.Code).To(Equal(http.StatusOK), w.Body.String())
			Expect(decode[nade.Nade](w).Video.ThumbnailURL).To(Equal("https://thumbs.test/abc123.jpg"))
		})
	})

	Describe("SyncProfile", func() {
		It("copies the token's profile onto the caller's nades", func() {
			_, err := repo.Save(context.Background(), nade.CreateInput{
				Map: "anubis", Type: nade.TypeSmoke, Owner: nade.Owner{UserID: "alice", Nickname: "old"},
			})
			Expect(err).NotTo(HaveOccurred())

			w := doPost(r, "/me/nades/profile", nil, user)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decode[map[string]int](w)["updated"]).To(Equal(1))

			owned, err := repo.GetByUser(context.Background(), "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(owned[0].Owner.Nickname).To(Equal("nick-alice"))
		})
	})
})

func ptr[T any](v T) *T { return &v }
