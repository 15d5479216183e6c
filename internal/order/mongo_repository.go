package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatori-be/internal/db"
	"chatori-be/internal/logger"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type orderDocument struct {
	ID               string               `bson:"_id"`
	UserID           string               `bson:"user_id"`
	Items            []lineDocument       `bson:"items"`
	TotalAmount      primitive.Decimal128 `bson:"total_amount"`
	DeliveryAddress  string               `bson:"delivery_address"`
	PaymentMethod    string               `bson:"payment_method"`
	PaymentStatus    string               `bson:"payment_status"`
	GatewayOrderID   string               `bson:"gateway_order_id"`
	GatewayPaymentID string               `bson:"gateway_payment_id"`
	Status           string               `bson:"status"`
	DeliveryOTP      string               `bson:"delivery_otp"`
	IdempotencyKey   string               `bson:"idempotency_key,omitempty"`
	History          []historyDocument    `bson:"status_history"`
	CreatedAt        time.Time            `bson:"created_at"`
	UpdatedAt        time.Time            `bson:"updated_at"`
}

type lineDocument struct {
	FoodID   string               `bson:"food_id"`
	Name     string               `bson:"name"`
	Price    primitive.Decimal128 `bson:"price"`
	Quantity int                  `bson:"quantity"`
	Image    string               `bson:"image"`
}

type historyDocument struct {
	From      string    `bson:"from"`
	To        string    `bson:"to"`
	ActorID   string    `bson:"actor_id"`
	ActorRole string    `bson:"actor_role"`
	At        time.Time `bson:"at"`
}

type customerDocument struct {
	Name   string `bson:"name"`
	Email  string `bson:"email"`
	Mobile string `bson:"mobile"`
}

type orderWithCustomer struct {
	Order    orderDocument     `bson:",inline"`
	Customer *customerDocument `bson:"customer"`
}

// MongoRepository keeps each order as one document with its status history
// embedded, so a transition and its audit entry are a single write.
type MongoRepository struct {
	database *mongo.Database
	orders   *mongo.Collection
	carts    *mongo.Collection
}

func NewMongoRepository(database *mongo.Database) *MongoRepository {
	return &MongoRepository{
		database: database,
		orders:   database.Collection(db.OrdersCollection),
		carts:    database.Collection(db.CartsCollection),
	}
}

// Create runs the insert and the cart clear inside a session transaction.
func (r *MongoRepository) Create(ctx context.Context, o *Order) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "mongo_repository"),
		zap.String("method", "Create"),
		zap.String("user_id", o.UserID),
	)

	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	doc, err := toOrderDocument(o)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailedCreateOrder, err)
	}

	session, err := r.database.Client().StartSession()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailedCreateOrder, err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := r.orders.InsertOne(sc, doc); err != nil {
			return nil, err
		}
		_, err := r.carts.UpdateOne(sc,
			bson.M{"user_id": o.UserID},
			bson.M{
				"$set": bson.M{"items": bson.A{}, "updated_at": now},
				"$inc": bson.M{"version": 1},
			},
		)
		return nil, err
	})
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateIdempotencyKey
	}
	if err != nil {
		log.Error("failed to create order", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrFailedCreateOrder, err)
	}
	return nil
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (*Order, error) {
	var doc orderDocument
	err := r.orders.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedGetOrder, err)
	}
	return toOrder(&doc), nil
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (*Order, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoRepository) GetByIdempotencyKey(ctx context.Context, userID, key string) (*Order, error) {
	return r.findOne(ctx, bson.M{"user_id": userID, "idempotency_key": key})
}

func (r *MongoRepository) ListByUser(ctx context.Context, userID string) ([]*Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := r.orders.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedGetOrder, err)
	}
	defer cur.Close(ctx)

	var docs []orderDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedGetOrder, err)
	}

	orders := make([]*Order, 0, len(docs))
	for i := range docs {
		orders = append(orders, toOrder(&docs[i]))
	}
	return orders, nil
}

func (r *MongoRepository) ListAll(ctx context.Context) ([]*AdminOrder, error) {
	return r.aggregateWithCustomer(ctx, nil)
}

func (r *MongoRepository) ListByStatuses(ctx context.Context, statuses []Status) ([]*AdminOrder, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return r.aggregateWithCustomer(ctx, bson.M{"status": bson.M{"$in": names}})
}

func (r *MongoRepository) aggregateWithCustomer(ctx context.Context, match bson.M) ([]*AdminOrder, error) {
	pipeline := mongo.Pipeline{}
	if match != nil {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: match}})
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}}}},
		bson.D{{Key: "$lookup", Value: customerLookup()}},
		bson.D{{Key: "$unwind", Value: bson.M{
			"path":                       "$customer",
			"preserveNullAndEmptyArrays": true,
		}}},
	)

	cur, err := r.orders.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedGetOrder, err)
	}
	defer cur.Close(ctx)

	var docs []orderWithCustomer
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedGetOrder, err)
	}

	out := make([]*AdminOrder, 0, len(docs))
	for i := range docs {
		ao := &AdminOrder{Order: *toOrder(&docs[i].Order)}
		if c := docs[i].Customer; c != nil {
			ao.Customer = Customer{Name: c.Name, Email: c.Email, Mobile: c.Mobile}
		}
		out = append(out, ao)
	}
	return out, nil
}

// customerLookup joins the users collection on either a string _id or an
// ObjectId _id whose hex form is stored in user_id.
func customerLookup() bson.M {
	asObjectID := bson.M{"$convert": bson.M{
		"input":   "$$uid",
		"to":      "objectId",
		"onError": nil,
		"onNull":  nil,
	}}
	return bson.M{
		"from": db.UsersCollection,
		"let":  bson.M{"uid": "$user_id"},
		"pipeline": bson.A{
			bson.M{"$match": bson.M{"$expr": bson.M{"$or": bson.A{
				bson.M{"$eq": bson.A{"$_id", "$$uid"}},
				bson.M{"$eq": bson.A{"$_id", asObjectID}},
			}}}},
			bson.M{"$limit": 1},
		},
		"as": "customer",
	}
}

func (r *MongoRepository) UpdateStatus(ctx context.Context, change StatusChange) (*Order, error) {
	now := time.Now().UTC()
	update := bson.M{
		"$set":  bson.M{"status": string(change.To), "updated_at": now},
		"$push": bson.M{"status_history": toHistoryDocument(change, now)},
	}

	o, err := r.findAndUpdate(ctx, bson.M{"_id": change.OrderID, "status": string(change.From)}, update)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrConcurrentUpdate
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedUpdateOrder, err)
	}
	return o, nil
}

func (r *MongoRepository) Settle(ctx context.Context, id string, from Status, s Settlement) (*Order, error) {
	now := time.Now().UTC()
	set := bson.M{
		"payment_status":     string(s.PaymentStatus),
		"gateway_payment_id": s.GatewayPaymentID,
		"updated_at":         now,
	}
	if s.GatewayOrderID != "" {
		set["gateway_order_id"] = s.GatewayOrderID
	}
	update := bson.M{"$set": set}
	if s.Cancel {
		set["status"] = string(StatusCancelled)
		update["$push"] = bson.M{"status_history": toHistoryDocument(StatusChange{
			From: from, To: StatusCancelled, ActorID: "payment", ActorRole: "system",
		}, now)}
	}

	filter := bson.M{"_id": id, "status": string(from), "payment_status": string(PaymentStatusPending)}
	o, err := r.findAndUpdate(ctx, filter, update)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrPaymentNotPending
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedUpdateOrder, err)
	}
	return o, nil
}

func (r *MongoRepository) findAndUpdate(ctx context.Context, filter, update bson.M) (*Order, error) {
	var doc orderDocument
	err := r.orders.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return nil, err
	}
	return toOrder(&doc), nil
}

func (r *MongoRepository) History(ctx context.Context, id string) ([]StatusChange, error) {
	var doc orderDocument
	err := r.orders.FindOne(ctx, bson.M{"_id": id},
		options.FindOne().SetProjection(bson.M{"status_history": 1}),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedGetOrder, err)
	}

	history := make([]StatusChange, 0, len(doc.History))
	for _, h := range doc.History {
		history = append(history, StatusChange{
			OrderID:   id,
			From:      Status(h.From),
			To:        Status(h.To),
			ActorID:   h.ActorID,
			ActorRole: h.ActorRole,
			At:        h.At,
		})
	}
	return history, nil
}

func toHistoryDocument(c StatusChange, at time.Time) historyDocument {
	return historyDocument{
		From:      string(c.From),
		To:        string(c.To),
		ActorID:   c.ActorID,
		ActorRole: c.ActorRole,
		At:        at,
	}
}

func toOrderDocument(o *Order) (*orderDocument, error) {
	total, err := primitive.ParseDecimal128(o.TotalAmount.String())
	if err != nil {
		return nil, err
	}

	doc := &orderDocument{
		ID:               o.ID,
		UserID:           o.UserID,
		Items:            make([]lineDocument, 0, len(o.Items)),
		TotalAmount:      total,
		DeliveryAddress:  o.DeliveryAddress,
		PaymentMethod:    string(o.PaymentMethod),
		PaymentStatus:    string(o.PaymentStatus),
		GatewayOrderID:   o.GatewayOrderID,
		GatewayPaymentID: o.GatewayPaymentID,
		Status:           string(o.Status),
		DeliveryOTP:      o.DeliveryOTP,
		IdempotencyKey:   o.IdempotencyKey,
		History:          []historyDocument{},
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
	for _, it := range o.Items {
		price, err := primitive.ParseDecimal128(it.Price.String())
		if err != nil {
			return nil, err
		}
		doc.Items = append(doc.Items, lineDocument{
			FoodID:   it.FoodID,
			Name:     it.Name,
			Price:    price,
			Quantity: it.Quantity,
			Image:    it.Image,
		})
	}
	return doc, nil
}

func toOrder(doc *orderDocument) *Order {
	o := &Order{
		ID:               doc.ID,
		UserID:           doc.UserID,
		Items:            make([]LineItem, 0, len(doc.Items)),
		TotalAmount:      decimalFrom(doc.TotalAmount),
		DeliveryAddress:  doc.DeliveryAddress,
		PaymentMethod:    PaymentMethod(doc.PaymentMethod),
		PaymentStatus:    PaymentStatus(doc.PaymentStatus),
		GatewayOrderID:   doc.GatewayOrderID,
		GatewayPaymentID: doc.GatewayPaymentID,
		Status:           Status(doc.Status),
		DeliveryOTP:      doc.DeliveryOTP,
		IdempotencyKey:   doc.IdempotencyKey,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}
	for _, it := range doc.Items {
		o.Items = append(o.Items, LineItem{
			FoodID:   it.FoodID,
			Name:     it.Name,
			Price:    decimalFrom(it.Price),
			Quantity: it.Quantity,
			Image:    it.Image,
		})
	}
	return o
}

func decimalFrom(d primitive.Decimal128) decimal.Decimal {
	v, err := decimal.NewFromString(d.String())
	if err != nil {
		return decimal.Zero
	}
	return v
}
