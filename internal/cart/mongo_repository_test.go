package cart

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

const cartsNS = "test.carts"

func mongoCart(t testing.TB, version int64, items ...Item) bson.D {
	t.Helper()
	doc, err := toDocument(&Cart{UserID: "u1", Items: items})
	require.NoError(t, err)
	doc.Version = version
	doc.CreatedAt = time.Now().UTC()
	doc.UpdatedAt = doc.CreatedAt

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var d bson.D
	require.NoError(t, bson.Unmarshal(raw, &d))
	return d
}

func kachori() Item {
	return Item{ID: "e1", FoodID: "f1", Name: "Kachori", Price: decimal.NewFromInt(15), Quantity: 1}
}

var (
	emptyBatch   = mtest.CreateCursorResponse(0, cartsNS, mtest.FirstBatch)
	replaced     = mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1})
	versionMoved = mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0})
	inserted     = mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1})
)

func bumpKachori(c *Cart) error {
	return c.setQuantity("e1", 5)
}

func TestMongoRepository_Get(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("Success", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB, "carts")
		mt.AddMockResponses(mtest.CreateCursorResponse(0, cartsNS, mtest.FirstBatch, mongoCart(mt, 2, kachori())))

		c, err := repo.Get(context.Background(), "u1")

		require.NoError(mt, err)
		require.Len(mt, c.Items, 1)
		assert.Equal(mt, "Kachori", c.Items[0].Name)
		assert.True(mt, decimal.NewFromInt(15).Equal(c.Items[0].Price))
	})

	mt.Run("Not Found", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB, "carts")
		mt.AddMockResponses(emptyBatch)

		_, err := repo.Get(context.Background(), "u1")

		assert.ErrorIs(mt, err, ErrCartNotFound)
	})
}

func TestMongoRepository_Update(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("Success", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB, "carts")
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, cartsNS, mtest.FirstBatch, mongoCart(mt, 3, kachori())),
			replaced,
		)

		c, err := repo.Update(context.Background(), "u1", false, bumpKachori)

		require.NoError(mt, err)
		assert.Equal(mt, 5, c.Items[0].Quantity)

		events := mt.GetAllStartedEvents()
		require.Len(mt, events, 2)
		assert.Equal(mt, int64(3), events[1].Command.Lookup("updates", "0", "q", "version").Int64())
		assert.Equal(mt, int64(4), events[1].Command.Lookup("updates", "0", "u", "version").Int64())
	})

	mt.Run("Creates missing cart", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB, "carts")
		mt.AddMockResponses(emptyBatch, inserted)

		c, err := repo.Update(context.Background(), "u1", true, func(c *Cart) error {
			c.add(Snapshot{FoodID: "f1", Name: "Kachori", Price: decimal.NewFromInt(15)}, 2)
			return nil
		})

		require.NoError(mt, err)
		require.Len(mt, c.Items, 1)
		assert.Equal(mt, 2, c.Items[0].Quantity)

		events := mt.GetAllStartedEvents()
		require.Len(mt, events, 2)
		assert.Equal(mt, "insert", events[1].CommandName)
		assert.Equal(mt, int64(1), events[1].Command.Lookup("documents", "0", "version").Int64())
	})

	mt.Run("Created concurrently retries", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB, "carts")
		mt.AddMockResponses(
			emptyBatch,
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"}),
			mtest.CreateCursorResponse(0, cartsNS, mtest.FirstBatch, mongoCart(mt, 1, kachori())),
			replaced,
		)

		c, err := repo.Update(context.Background(), "u1", true, bumpKachori)

		require.NoError(mt, err)
		assert.Equal(mt, 5, c.Items[0].Quantity)
		assert.Len(mt, mt.GetAllStartedEvents(), 4)
	})

	mt.Run("Version keeps moving", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB, "carts")
		for i := int64(0); i < mongoUpdateAttempts; i++ {
			mt.AddMockResponses(
				mtest.CreateCursorResponse(0, cartsNS, mtest.FirstBatch, mongoCart(mt, i, kachori())),
				versionMoved,
			)
		}

		_, err := repo.Update(context.Background(), "u1", false, bumpKachori)

		assert.ErrorIs(mt, err, ErrConcurrentUpdate)
		assert.Len(mt, mt.GetAllStartedEvents(), 2*mongoUpdateAttempts)
	})

	mt.Run("Missing cart without create", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB, "carts")
		mt.AddMockResponses(emptyBatch)

		_, err := repo.Update(context.Background(), "u1", false, bumpKachori)

		assert.ErrorIs(mt, err, ErrCartNotFound)
	})

	mt.Run("Mutation error skips write", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB, "carts")
		mt.AddMockResponses(mtest.CreateCursorResponse(0, cartsNS, mtest.FirstBatch, mongoCart(mt, 1, kachori())))

		_, err := repo.Update(context.Background(), "u1", false, func(c *Cart) error {
			return c.setQuantity("nope", 2)
		})

		assert.ErrorIs(mt, err, ErrCartItemNotFound)
		assert.Len(mt, mt.GetAllStartedEvents(), 1)
	})

	mt.Run("Write failure", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB, "carts")
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, cartsNS, mtest.FirstBatch, mongoCart(mt, 1, kachori())),
			mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Message: "boom", Name: "BadValue"}),
		)

		_, err := repo.Update(context.Background(), "u1", false, bumpKachori)

		assert.ErrorIs(mt, err, ErrFailedUpdateCart)
	})
}
