// internal/store/mongo_store.go
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/javajoker/catalog-tracker/internal/config"
	"github.com/javajoker/catalog-tracker/internal/models"
	"github.com/javajoker/catalog-tracker/internal/reconcile"
)

// productDocument embeds the three series in the product document. Writing
// the whole document with one replace keeps a product's update atomic.
type productDocument struct {
	ID            string       `bson:"id"`
	Name          string       `bson:"name"`
	Category      string       `bson:"category"`
	Price         int64        `bson:"price"`
	OriginalPrice int64        `bson:"original_price"`
	Promotion     string       `bson:"promotion"`
	StockQuantity int64        `bson:"stock_quantity"`
	TotalSold     int64        `bson:"total_sold"`
	Date          string       `bson:"date"`
	SalesHistory  []salesEntry `bson:"sales_history"`
	StockHistory  []stockEntry `bson:"stock_history"`
	PriceHistory  []priceEntry `bson:"price_history"`
	CreatedAt     time.Time    `bson:"created_at"`
	UpdatedAt     time.Time    `bson:"updated_at"`
}

type salesEntry struct {
	Date       string `bson:"date"`
	TotalSold  int64  `bson:"total_sold"`
	SoldInDate int64  `bson:"sold_in_date"`
}

type stockEntry struct {
	Date           string `bson:"date"`
	StockQuantity  int64  `bson:"stock_quantity"`
	StockIncreased int64  `bson:"stock_increased"`
	StockDecreased int64  `bson:"stock_decreased"`
}

type priceEntry struct {
	Date          string `bson:"date"`
	Price         int64  `bson:"price"`
	OriginalPrice int64  `bson:"original_price"`
	Promotion     string `bson:"promotion,omitempty"`
}

type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewMongoStore(ctx context.Context, cfg config.StoreConfig) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	coll := client.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection)
	if _, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ensure product id index: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"database":   cfg.MongoDatabase,
		"collection": cfg.MongoCollection,
	}).Info("Mongo store connected")

	return &MongoStore{client: client, collection: coll}, nil
}

func (s *MongoStore) find(ctx context.Context, productID string) (*productDocument, error) {
	var doc productDocument
	err := s.collection.FindOne(ctx, bson.M{"id": productID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find product %s: %w", productID, err)
	}
	return &doc, nil
}

func (s *MongoStore) LoadHistory(ctx context.Context, productID, date string) (reconcile.History, error) {
	doc, err := s.find(ctx, productID)
	if errors.Is(err, ErrNotFound) {
		return reconcile.NewHistory(), nil
	}
	if err != nil {
		return reconcile.NewHistory(), err
	}
	return historyFromDocument(doc), nil
}

func (s *MongoStore) Save(ctx context.Context, product models.Product, res reconcile.Result) error {
	doc, err := s.find(ctx, product.ProductID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	doc = mergeDocument(doc, product, res, time.Now())
	_, err = s.collection.ReplaceOne(ctx, bson.M{"id": product.ProductID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("replace product %s: %w", product.ProductID, err)
	}
	return nil
}

func (s *MongoStore) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	doc, err := s.find(ctx, productID)
	if err != nil {
		return nil, err
	}
	p := productFromDocument(doc)
	return &p, nil
}

func (s *MongoStore) LatestStock(ctx context.Context, productID string) (*models.StockHistory, error) {
	doc, err := s.find(ctx, productID)
	if err != nil {
		return nil, err
	}
	if len(doc.StockHistory) == 0 {
		return nil, ErrNotFound
	}

	latest := doc.StockHistory[0]
	for _, e := range doc.StockHistory[1:] {
		if e.Date > latest.Date {
			latest = e
		}
	}
	return &models.StockHistory{
		ProductID:      doc.ID,
		Date:           latest.Date,
		StockQuantity:  latest.StockQuantity,
		StockIncreased: latest.StockIncreased,
		StockDecreased: latest.StockDecreased,
	}, nil
}

func (s *MongoStore) ProductIDs(ctx context.Context) ([]string, error) {
	values, err := s.collection.Distinct(ctx, "id", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list product ids: %w", err)
	}
	ids := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func historyFromDocument(doc *productDocument) reconcile.History {
	h := reconcile.NewHistory()
	for _, e := range doc.StockHistory {
		h.Stock[e.Date] = models.StockHistory{
			ProductID:      doc.ID,
			Date:           e.Date,
			StockQuantity:  e.StockQuantity,
			StockIncreased: e.StockIncreased,
			StockDecreased: e.StockDecreased,
		}
	}
	for _, e := range doc.PriceHistory {
		h.Price[e.Date] = models.PriceHistory{
			ProductID:     doc.ID,
			Date:          e.Date,
			Price:         e.Price,
			OriginalPrice: e.OriginalPrice,
			Promotion:     e.Promotion,
		}
	}
	for _, e := range doc.SalesHistory {
		h.Sales[e.Date] = models.SalesHistory{
			ProductID:  doc.ID,
			Date:       e.Date,
			TotalSold:  e.TotalSold,
			SoldInDate: e.SoldInDate,
		}
	}
	return h
}

func productFromDocument(doc *productDocument) models.Product {
	return models.Product{
		ProductID:     doc.ID,
		Category:      doc.Category,
		Name:          doc.Name,
		Price:         doc.Price,
		OriginalPrice: doc.OriginalPrice,
		Promotion:     doc.Promotion,
		StockQuantity: doc.StockQuantity,
		TotalSold:     doc.TotalSold,
		Date:          doc.Date,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
}

// mergeDocument writes the product state and replaces (or appends) the entry
// for res.Date in each embedded series, keeping each series date-ordered.
func mergeDocument(doc *productDocument, product models.Product, res reconcile.Result, now time.Time) *productDocument {
	if doc == nil {
		doc = &productDocument{ID: product.ProductID, CreatedAt: now}
	}

	doc.Name = product.Name
	doc.Category = product.Category
	doc.Price = product.Price
	doc.OriginalPrice = product.OriginalPrice
	doc.Promotion = product.Promotion
	doc.StockQuantity = product.StockQuantity
	doc.TotalSold = product.TotalSold
	doc.Date = product.Date
	doc.UpdatedAt = now

	doc.StockHistory = upsertEntry(doc.StockHistory, stockEntry{
		Date:           res.Date,
		StockQuantity:  res.Stock.StockQuantity,
		StockIncreased: res.Stock.StockIncreased,
		StockDecreased: res.Stock.StockDecreased,
	}, func(e stockEntry) string { return e.Date })

	doc.PriceHistory = upsertEntry(doc.PriceHistory, priceEntry{
		Date:          res.Date,
		Price:         res.Price.Price,
		OriginalPrice: res.Price.OriginalPrice,
		Promotion:     res.Price.Promotion,
	}, func(e priceEntry) string { return e.Date })

	doc.SalesHistory = upsertEntry(doc.SalesHistory, salesEntry{
		Date:       res.Date,
		TotalSold:  res.Sales.TotalSold,
		SoldInDate: res.Sales.SoldInDate,
	}, func(e salesEntry) string { return e.Date })

	return doc
}

func upsertEntry[T any](entries []T, entry T, date func(T) string) []T {
	key := date(entry)
	for i := range entries {
		if date(entries[i]) == key {
			entries[i] = entry
			return entries
		}
	}
	entries = append(entries, entry)
	sort.SliceStable(entries, func(i, j int) bool { return date(entries[i]) < date(entries[j]) })
	return entries
}
