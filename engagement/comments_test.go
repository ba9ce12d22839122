package engagement_test

import (
	"context"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/csgonades/nade-api/engagement"
	"github.com/csgonades/nade-api/nade"
)

var _ = Describe("Comments", func() {
	var (
		ctx      context.Context
		repo     *nade.Repository
		comments *engagement.Comments
		n        *nade.Nade
		author   nade.Owner
	)

	BeforeEach(func() {
		ctx = context.Background()
		cleanDB()
		repo = newRepository()
		comments = engagement.NewComments(db, repo)
		n = createNade(ctx, repo, nade.StatusAccepted)
		author = nade.Owner{UserID: "user-1", Nickname: "olofmeister"}
	})

	commentCount := func() int {
		got, err := repo.GetByID(ctx, n.ID)
		Expect(err).NotTo(HaveOccurred())
		return got.CommentCount
	}

	It("adds a comment and bumps the count", func() {
		c, err := comments.Add(ctx, engagement.CommentInput{NadeID: n.ID, Author: author, Message: "  works on 128 tick  "})
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Message).To(Equal("works on 128 tick"))
		Expect(c.Nickname).To(Equal("olofmeister"))
		Expect(commentCount()).To(Equal(1))
	})

	DescribeTable("rejects invalid messages",
		func(msg string) {
			_, err := comments.Add(ctx, engagement.CommentInput{NadeID: n.ID, Author: author, Message: msg})
			Expect(errors.Is(err, nade.ErrValidation)).To(BeTrue())
		},
		Entry("empty", ""),
		Entry("whitespace", "   "),
		Entry("too long", strings.Repeat("a", engagement.MaxCommentLength+1)),
	)

	It("lists comments oldest first", func() {
		first, err := comments.Add(ctx, engagement.CommentInput{NadeID: n.ID, Author: author, Message: "first"})
		Expect(err).NotTo(HaveOccurred())
		time.Sleep(2 * time.Millisecond)
		second, err := comments.Add(ctx, engagement.CommentInput{NadeID: n.ID, Author: author, Message: "second"})
		Expect(err).NotTo(HaveOccurred())

		list, err := comments.ListForNade(ctx, n.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(list).To(HaveLen(2))
		Expect(list[0].ID).To(Equal(first.ID))
		Expect(list[1].ID).To(Equal(second.ID))
	})

	It("lets only the author edit", func() {
		c, err := comments.Add(ctx, engagement.CommentInput{NadeID: n.ID, Author: author, Message: "typo"})
		Expect(err).NotTo(HaveOccurred())

		_, err = comments.Update(ctx, c.ID, "hijacked", engagement.Caller{UserID: "user-2", Moderator: true})
		Expect(errors.Is(err, nade.ErrForbidden)).To(BeTrue())

		updated, err := comments.Update(ctx, c.ID, "fixed", engagement.Caller{UserID: "user-1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.Message).To(Equal("fixed"))
	})

	It("lets the author or a moderator delete", func() {
		c, err := comments.Add(ctx, engagement.CommentInput{NadeID: n.ID, Author: author, Message: "one"})
		Expect(err).NotTo(HaveOccurred())
		d, err := comments.Add(ctx, engagement.CommentInput{NadeID: n.ID, Author: author, Message: "two"})
		Expect(err).NotTo(HaveOccurred())
		Expect(commentCount()).To(Equal(2))

		err = comments.Delete(ctx, c.ID, engagement.Caller{UserID: "user-2"})
		Expect(errors.Is(err, nade.ErrForbidden)).To(BeTrue())

		Expect(comments.Delete(ctx, c.ID, engagement.Caller{UserID: "user-1"})).To(Succeed())
		Expect(comments.Delete(ctx, d.ID, engagement.Caller{UserID: "mod", Moderator: true})).To(Succeed())
		Expect(commentCount()).To(BeZero())

		err = comments.Delete(ctx, c.ID, engagement.Caller{UserID: "user-1"})
		Expect(errors.Is(err, nade.ErrNotFound)).To(BeTrue())
	})
})
