package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatori-be/internal/logger"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const mongoUpdateAttempts = 3

type cartDocument struct {
	UserID    string         `bson:"user_id"`
	Items     []itemDocument `bson:"items"`
	Version   int64          `bson:"version"`
	CreatedAt time.Time      `bson:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

type itemDocument struct {
	ID       string               `bson:"entry_id"`
	FoodID   string               `bson:"food_id"`
	Name     string               `bson:"name"`
	Image    string               `bson:"image"`
	Price    primitive.Decimal128 `bson:"price"`
	Quantity int                  `bson:"quantity"`
}

// MongoRepository stores one document per user. Writes replace the whole
// document guarded by a version field, so racing mutations retry instead of
// overwriting each other.
type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(database *mongo.Database, collection string) *MongoRepository {
	return &MongoRepository{collection: database.Collection(collection)}
}

func (r *MongoRepository) Get(ctx context.Context, userID string) (*Cart, error) {
	doc, err := r.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toCart(doc), nil
}

func (r *MongoRepository) find(ctx context.Context, userID string) (*cartDocument, error) {
	var doc cartDocument
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedGetCart, err)
	}
	return &doc, nil
}

func (r *MongoRepository) Update(ctx context.Context, userID string, create bool, fn MutateFunc) (*Cart, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "mongo_repository"),
		zap.String("method", "Update"),
		zap.String("user_id", userID),
	)

	for attempt := 1; attempt <= mongoUpdateAttempts; attempt++ {
		doc, err := r.find(ctx, userID)
		isNew := false
		if errors.Is(err, ErrCartNotFound) && create {
			now := time.Now().UTC()
			doc = &cartDocument{UserID: userID, CreatedAt: now}
			isNew = true
		} else if err != nil {
			return nil, err
		}

		c := toCart(doc)
		if err := fn(c); err != nil {
			return nil, err
		}

		next, err := toDocument(c)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFailedUpdateCart, err)
		}
		next.CreatedAt = doc.CreatedAt
		next.UpdatedAt = time.Now().UTC()
		next.Version = doc.Version + 1

		if isNew {
			_, err = r.collection.InsertOne(ctx, next)
			if mongo.IsDuplicateKeyError(err) {
				log.Debug("cart created concurrently, retrying", zap.Int("attempt", attempt))
				continue
			}
		} else {
			var res *mongo.UpdateResult
			res, err = r.collection.ReplaceOne(ctx, bson.M{"user_id": userID, "version": doc.Version}, next)
			if err == nil && res.MatchedCount == 0 {
				log.Debug("cart version moved, retrying", zap.Int("attempt", attempt))
				continue
			}
		}
		if err != nil {
			log.Error("failed to write cart", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrFailedUpdateCart, err)
		}

		return toCart(next), nil
	}

	return nil, ErrConcurrentUpdate
}

func toCart(doc *cartDocument) *Cart {
	c := &Cart{
		UserID:    doc.UserID,
		Items:     make([]Item, 0, len(doc.Items)),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	for _, it := range doc.Items {
		price, err := decimal.NewFromString(it.Price.String())
		if err != nil {
			price = decimal.Zero
		}
		c.Items = append(c.Items, Item{
			ID:       it.ID,
			FoodID:   it.FoodID,
			Name:     it.Name,
			Image:    it.Image,
			Price:    price,
			Quantity: it.Quantity,
		})
	}
	return c
}

func toDocument(c *Cart) (*cartDocument, error) {
	doc := &cartDocument{
		UserID: c.UserID,
		Items:  make([]itemDocument, 0, len(c.Items)),
	}
	for _, it := range c.Items {
		price, err := primitive.ParseDecimal128(it.Price.String())
		if err != nil {
			return nil, err
		}
		doc.Items = append(doc.Items, itemDocument{
			ID:       it.ID,
			FoodID:   it.FoodID,
			Name:     it.Name,
			Image:    it.Image,
			Price:    price,
			Quantity: it.Quantity,
		})
	}
	return doc, nil
}
