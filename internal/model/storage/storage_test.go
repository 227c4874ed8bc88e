package storage_test

import (
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"max.ks1230/expenses-bot/internal/entity/expense"
	"max.ks1230/expenses-bot/internal/entity/user"
	"max.ks1230/expenses-bot/internal/model/storage"
)

type sqliteConfig struct {
	path string
}

func (c sqliteConfig) Driver() string { return "sqlite" }
func (c sqliteConfig) DSN() string    { return c.path }

var _ = Describe("SQL storage", func() {
	var (
		ctx     context.Context
		repo    *storage.SQLStorage
		catalog *expense.Catalog
		owner   user.Record
	)

	newExpense := func(amount string, key string, spentAt time.Time) expense.Record {
		cat, ok := catalog.ByKey(key)
		Expect(ok).To(BeTrue())
		return expense.Record{
			UserID:        owner.ID,
			Amount:        decimal.RequireFromString(amount),
			Currency:      "MXN",
			Category:      cat,
			Description:   "test",
			PaymentMethod: expense.Card,
			Source:        expense.SourceText,
			SpentAt:       spentAt,
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		repo, err = storage.New(ctx, sqliteConfig{path: filepath.Join(GinkgoT().TempDir(), "test.db")})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(repo.Close)

		catalog, err = expense.LoadCatalog("")
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.SyncCategories(ctx, catalog.All())).To(Succeed())

		owner, err = repo.EnsureUser(ctx, user.Profile{ID: 42, Username: "ana", FirstName: "Ana"})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("users", func() {
		It("refreshes the profile on repeated contact", func() {
			rec, err := repo.EnsureUser(ctx, user.Profile{ID: 42, Username: "ana_m", FirstName: "Ana"})
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Username).To(Equal("ana_m"))
			Expect(rec.CreatedAt).To(BeTemporally("~", owner.CreatedAt, time.Second))
		})

		It("reports unknown users", func() {
			_, err := repo.GetUser(ctx, 7)
			Expect(err).To(MatchError(storage.ErrNotFound))
		})

		It("stores and clears email credentials", func() {
			Expect(repo.SaveEmailCredentials(ctx, owner.ID, "ana@example.com", "app-pass")).To(Succeed())

			users, err := repo.UsersWithEmailAutoCheck(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(HaveLen(1))
			Expect(users[0].EmailConnected()).To(BeTrue())
			Expect(users[0].EmailAutoCheck).To(BeTrue())

			checked := time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC)
			Expect(repo.TouchEmailChecked(ctx, owner.ID, checked)).To(Succeed())
			rec, err := repo.GetUser(ctx, owner.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.EmailLastChecked.Equal(checked)).To(BeTrue())

			Expect(repo.ClearEmailCredentials(ctx, owner.ID)).To(Succeed())
			users, err = repo.UsersWithEmailAutoCheck(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(BeEmpty())
		})

		It("fails to update a missing user", func() {
			Expect(repo.ClearEmailCredentials(ctx, 7)).To(MatchError(storage.ErrNotFound))
		})
	})

	Describe("categories", func() {
		It("keeps the catalog order and is idempotent", func() {
			Expect(repo.SyncCategories(ctx, catalog.All())).To(Succeed())

			cats, err := repo.ListCategories(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(cats).To(HaveLen(len(catalog.All())))
			Expect(cats[0].Key).To(Equal("alimentacion"))
		})

		It("retires categories dropped from the catalog", func() {
			saved, err := repo.SaveExpense(ctx, newExpense("75", "educacion", time.Now()))
			Expect(err).NotTo(HaveOccurred())

			var kept []expense.Category
			for _, c := range catalog.All() {
				if c.Key != "educacion" {
					kept = append(kept, c)
				}
			}
			Expect(repo.SyncCategories(ctx, kept)).To(Succeed())

			cats, err := repo.ListCategories(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(cats).To(HaveLen(len(kept)))

			_, err = repo.SaveExpense(ctx, newExpense("10", "educacion", time.Now()))
			Expect(err).To(MatchError(storage.ErrUnknownCategory))

			list, err := repo.ListExpenses(ctx, owner.ID, time.Time{}, time.Time{}, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(1))
			Expect(list[0].ID).To(Equal(saved.ID))
			Expect(list[0].Category.Key).To(Equal("educacion"))

			Expect(repo.SyncCategories(ctx, catalog.All())).To(Succeed())
			_, err = repo.SaveExpense(ctx, newExpense("10", "educacion", time.Now()))
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("SaveExpense", func() {
		It("persists the amount exactly", func() {
			saved, err := repo.SaveExpense(ctx, newExpense("150", "transporte", time.Now()))
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.ID).To(BeNumerically(">", 0))

			list, err := repo.ListExpenses(ctx, owner.ID, time.Time{}, time.Time{}, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(1))
			Expect(list[0].Amount.StringFixed(2)).To(Equal("150.00"))
			Expect(list[0].Category.Name).To(Equal("Transporte"))
			Expect(list[0].PaymentMethod).To(Equal(expense.Card))
		})

		It("rejects categories outside the catalog", func() {
			rec := newExpense("10", "otros", time.Now())
			rec.Category = expense.Category{Key: "mascotas", Name: "Mascotas"}

			_, err := repo.SaveExpense(ctx, rec)
			Expect(err).To(MatchError(storage.ErrUnknownCategory))

			list, err := repo.ListExpenses(ctx, owner.ID, time.Time{}, time.Time{}, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(BeEmpty())
		})

		It("rejects negative amounts", func() {
			_, err := repo.SaveExpense(ctx, newExpense("-1", "otros", time.Now()))
			Expect(err).To(MatchError(storage.ErrInvalidExpense))
		})

		It("rejects amounts that do not fit in cents", func() {
			for _, amount := range []string{"99999999999999999999", "184467440737095516.16"} {
				_, err := repo.SaveExpense(ctx, newExpense(amount, "transporte", time.Now()))
				Expect(err).To(MatchError(storage.ErrInvalidExpense), amount)
			}

			list, err := repo.ListExpenses(ctx, owner.ID, time.Time{}, time.Time{}, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(BeEmpty())
		})

		It("keeps the largest representable amount exact", func() {
			_, err := repo.SaveExpense(ctx, newExpense("92233720368547758.07", "hogar", time.Now()))
			Expect(err).NotTo(HaveOccurred())

			list, err := repo.ListExpenses(ctx, owner.ID, time.Time{}, time.Time{}, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(1))
			Expect(list[0].Amount.StringFixed(2)).To(Equal("92233720368547758.07"))
		})

		It("rejects unknown payment methods and sources", func() {
			rec := newExpense("10", "otros", time.Now())
			rec.PaymentMethod = "bitcoin"
			_, err := repo.SaveExpense(ctx, rec)
			Expect(err).To(MatchError(storage.ErrInvalidExpense))

			rec = newExpense("10", "otros", time.Now())
			rec.Source = "fax"
			_, err = repo.SaveExpense(ctx, rec)
			Expect(err).To(MatchError(storage.ErrInvalidExpense))
		})
	})

	Describe("periods", func() {
		may := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		june := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

		BeforeEach(func() {
			for _, rec := range []expense.Record{
				newExpense("100.10", "alimentacion", may.Add(time.Hour)),
				newExpense("50.25", "alimentacion", may.Add(48*time.Hour)),
				newExpense("300", "hogar", june.Add(-time.Second)),
				newExpense("999", "hogar", june),
			} {
				_, err := repo.SaveExpense(ctx, rec)
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("lists newest first within the half-open period", func() {
			list, err := repo.ListExpenses(ctx, owner.ID, may, june, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(3))
			Expect(list[0].Amount.StringFixed(2)).To(Equal("300.00"))

			limited, err := repo.ListExpenses(ctx, owner.ID, may, june, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(limited).To(HaveLen(2))
		})

		It("sums by category to the same total as the rows", func() {
			totals, err := repo.SumByCategory(ctx, owner.ID, may, june)
			Expect(err).NotTo(HaveOccurred())
			Expect(totals).To(HaveLen(2))
			Expect(totals[0].Category.Key).To(Equal("hogar"))
			Expect(totals[1].Total.StringFixed(2)).To(Equal("150.35"))
			Expect(totals[1].Count).To(Equal(2))

			list, err := repo.ListExpenses(ctx, owner.ID, may, june, 0)
			Expect(err).NotTo(HaveOccurred())
			sum, rows := decimal.Zero, decimal.Zero
			for _, t := range totals {
				sum = sum.Add(t.Total)
			}
			for _, r := range list {
				rows = rows.Add(r.Amount)
			}
			Expect(sum.Equal(rows)).To(BeTrue())
		})

		It("does not mix users", func() {
			_, err := repo.EnsureUser(ctx, user.Profile{ID: 43})
			Expect(err).NotTo(HaveOccurred())
			totals, err := repo.SumByCategory(ctx, 43, may, june)
			Expect(err).NotTo(HaveOccurred())
			Expect(totals).To(BeEmpty())
		})
	})

	Describe("deletion", func() {
		It("deletes only the owner's expense", func() {
			saved, err := repo.SaveExpense(ctx, newExpense("20", "salud", time.Now()))
			Expect(err).NotTo(HaveOccurred())

			_, err = repo.DeleteExpense(ctx, 43, saved.ID)
			Expect(err).To(MatchError(storage.ErrNotFound))

			deleted, err := repo.DeleteExpense(ctx, owner.ID, saved.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted.Category.Key).To(Equal("salud"))

			_, err = repo.DeleteExpense(ctx, owner.ID, saved.ID)
			Expect(err).To(MatchError(storage.ErrNotFound))
		})

		It("wipes all of the user's expenses", func() {
			for i := 0; i < 3; i++ {
				_, err := repo.SaveExpense(ctx, newExpense("1", "otros", time.Now()))
				Expect(err).NotTo(HaveOccurred())
			}
			n, err := repo.DeleteUserExpenses(ctx, owner.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeEquivalentTo(3))
		})
	})
})
