package nade_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/csgonades/nade-api/nade"
)

var _ = Describe("Vote", func() {
	var (
		ctx  context.Context
		f    *fixture
		a, b *nade.Nade
	)

	BeforeEach(func() {
		ctx = context.Background()
		cleanDB()
		f = newFixture()
		a = f.accepted(ctx, submission("mirage", nade.TypeSmoke))
		b = f.accepted(ctx, submission("mirage", nade.TypeSmoke))
	})

	It("starts unrated nades at 1400 and moves them by half of K", func() {
		Expect(a.EloScore).To(BeNil())
		Expect(a.Score).To(Equal(1400))

		res, err := f.repo.Vote(ctx, nade.VoteInput{NadeA: a.ID, NadeB: b.ID, Winner: a.ID})
		Expect(err).NotTo(HaveOccurred())
		Expect(*res.A.EloScore).To(Equal(1420))
		Expect(*res.B.EloScore).To(Equal(1380))

		storedA, err := f.repo.GetByID(ctx, a.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(storedA.EloScore).To(HaveValue(Equal(1420)))
		storedB, err := f.repo.GetByID(ctx, b.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(storedB.EloScore).To(HaveValue(Equal(1380)))
	})

	It("invalidates cached copies and listings of both nades", func() {
		_, err := f.repo.GetByID(ctx, b.ID)
		Expect(err).NotTo(HaveOccurred())
		list, err := f.repo.GetByFilter(ctx, nade.Filter{Map: "mirage"})
		Expect(err).NotTo(HaveOccurred())
		Expect(list).To(HaveLen(2))

		_, err = f.repo.Vote(ctx, nade.VoteInput{NadeA: a.ID, NadeB: b.ID, Winner: b.ID})
		Expect(err).NotTo(HaveOccurred())

		list, err = f.repo.GetByFilter(ctx, nade.Filter{Map: "mirage"})
		Expect(err).NotTo(HaveOccurred())
		Expect(ids(list)).To(Equal([]string{b.ID, a.ID}))
		Expect(list[0].Score).To(Equal(1420))
		Expect(list[1].Score).To(Equal(1380))
	})

	It("accumulates across votes", func() {
		for range 3 {
			_, err := f.repo.Vote(ctx, nade.VoteInput{NadeA: a.ID, NadeB: b.ID, Winner: a.ID})
			Expect(err).NotTo(HaveOccurred())
		}
		got, err := f.repo.GetByID(ctx, a.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(*got.EloScore).To(BeNumerically(">", 1420))
		Expect(*got.EloScore).To(BeNumerically("<", 1400+3*40))
	})

	DescribeTable("rejects malformed votes",
		func(in func() nade.VoteInput) {
			_, err := f.repo.Vote(ctx, in())
			Expect(errors.Is(err, nade.ErrValidation)).To(BeTrue())
		},
		Entry("same nade twice", func() nade.VoteInput {
			return nade.VoteInput{NadeA: a.ID, NadeB: a.ID, Winner: a.ID}
		}),
		Entry("winner outside the pair", func() nade.VoteInput {
			return nade.VoteInput{NadeA: a.ID, NadeB: b.ID, Winner: "someone-else"}
		}),
		Entry("missing nade", func() nade.VoteInput {
			return nade.VoteInput{NadeA: a.ID, Winner: a.ID}
		}),
	)

	It("only lets accepted nades compete", func() {
		pending, err := f.repo.Save(ctx, submission("mirage", nade.TypeSmoke))
		Expect(err).NotTo(HaveOccurred())
		_, err = f.repo.Vote(ctx, nade.VoteInput{NadeA: a.ID, NadeB: pending.ID, Winner: a.ID})
		Expect(errors.Is(err, nade.ErrValidation)).To(BeTrue())
	})

	It("returns ErrNotFound for an unknown nade", func() {
		_, err := f.repo.Vote(ctx, nade.VoteInput{NadeA: a.ID, NadeB: "missing", Winner: a.ID})
		Expect(errors.Is(err, nade.ErrNotFound)).To(BeTrue())
	})
})
