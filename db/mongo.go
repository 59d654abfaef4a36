package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"song-recognition/config"
	"song-recognition/errs"
	"song-recognition/fingerprint"
)

// MongoStore is the alternative document-store backend for the
// Landmark Index (spec §9 "Both a relational and a document backend
// are supported"). songs and landmarks live in separate collections;
// a non-unique index on landmarks.hash gives sublinear point lookups.
type MongoStore struct {
	client    *mongo.Client
	songs     *mongo.Collection
	landmarks *mongo.Collection
}

type mongoSong struct {
	ID         uint64 `bson:"_id"`
	Title      string `bson:"title"`
	Artist     string `bson:"artist"`
	Path       string `bson:"path"`
	SpotifyURL string `bson:"spotify_url,omitempty"`
	YoutubeURL string `bson:"youtube_url,omitempty"`
}

type mongoLandmark struct {
	SongID     uint64 `bson:"song_id"`
	Hash       string `bson:"hash"`
	AnchorTime uint32 `bson:"anchor_time"`
}

// OpenMongo connects to the mongo deployment described by cfg and
// ensures indexes exist.
func OpenMongo(cfg config.Config) (*MongoStore, error) {
	uri := fmt.Sprintf("mongodb://%s:%s@%s:%s/%s", cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errs.IndexError(fmt.Errorf("connecting to mongo: %w", err))
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, errs.IndexError(fmt.Errorf("pinging mongo: %w", err))
	}

	db := client.Database(cfg.DBName)
	store := &MongoStore{
		client:    client,
		songs:     db.Collection("songs"),
		landmarks: db.Collection("landmarks"),
	}

	if _, err := store.songs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "path", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		client.Disconnect(ctx)
		return nil, errs.IndexError(fmt.Errorf("creating songs.path index: %w", err))
	}

	if _, err := store.landmarks.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "hash", Value: 1}},
	}); err != nil {
		client.Disconnect(ctx)
		return nil, errs.IndexError(fmt.Errorf("creating landmarks.hash index: %w", err))
	}

	return store, nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) CreateSong(title, artist, path, spotifyURL, youtubeURL string) (uint64, error) {
	ctx := context.Background()

	id := uint64(time.Now().UnixNano())
	doc := mongoSong{ID: id, Title: title, Artist: artist, Path: path, SpotifyURL: spotifyURL, YoutubeURL: youtubeURL}

	_, err := s.songs.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return 0, errs.DuplicatePath(path)
		}
		return 0, errs.IndexError(err)
	}
	return id, nil
}

func (s *MongoStore) GetSong(songID uint64) (*Song, error) {
	return s.findOneSong(bson.M{"_id": songID})
}

func (s *MongoStore) GetSongByPath(path string) (*Song, error) {
	return s.findOneSong(bson.M{"path": path})
}

func (s *MongoStore) findOneSong(filter bson.M) (*Song, error) {
	var doc mongoSong
	err := s.songs.FindOne(context.Background(), filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrSongNotFound
	}
	if err != nil {
		return nil, errs.IndexError(err)
	}
	return &Song{ID: doc.ID, Title: doc.Title, Artist: doc.Artist, Path: doc.Path, SpotifyURL: doc.SpotifyURL, YoutubeURL: doc.YoutubeURL}, nil
}

func (s *MongoStore) AllSongs() ([]Song, error) {
	cur, err := s.songs.Find(context.Background(), bson.M{})
	if err != nil {
		return nil, errs.IndexError(err)
	}
	defer cur.Close(context.Background())

	var songs []Song
	for cur.Next(context.Background()) {
		var doc mongoSong
		if err := cur.Decode(&doc); err != nil {
			return nil, errs.IndexError(err)
		}
		songs = append(songs, Song{ID: doc.ID, Title: doc.Title, Artist: doc.Artist, Path: doc.Path, SpotifyURL: doc.SpotifyURL, YoutubeURL: doc.YoutubeURL})
	}
	return songs, errs.IndexError(cur.Err())
}

func (s *MongoStore) DeleteSong(songID uint64) error {
	ctx := context.Background()
	if _, err := s.landmarks.DeleteMany(ctx, bson.M{"song_id": songID}); err != nil {
		return errs.IndexError(err)
	}
	if _, err := s.songs.DeleteOne(ctx, bson.M{"_id": songID}); err != nil {
		return errs.IndexError(err)
	}
	return nil
}

// InsertLandmarks bulk-inserts within a mongo session transaction when
// the deployment is a replica set, matching the sqlite backend's
// atomicity guarantee. On a standalone mongod (no replica set, common
// in local/dev use) transactions are unavailable; InsertMany is still
// one wire round-trip, but a crash mid-batch can leave a partial
// insert. This divergence is documented in DESIGN.md rather than
// silently hidden.
func (s *MongoStore) InsertLandmarks(songID uint64, landmarks []fingerprint.Landmark) error {
	if len(landmarks) == 0 {
		return nil
	}

	docs := make([]interface{}, len(landmarks))
	for i, l := range landmarks {
		docs[i] = mongoLandmark{SongID: songID, Hash: l.Hash, AnchorTime: l.AnchorTime}
	}

	ctx := context.Background()
	session, err := s.client.StartSession()
	if err != nil {
		// no replica set available: best-effort sequential insert.
		_, insErr := s.landmarks.InsertMany(ctx, docs)
		return errs.IndexError(insErr)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return s.landmarks.InsertMany(sc, docs)
	})
	return errs.IndexError(err)
}

func (s *MongoStore) Lookup(hash string) ([]Occurrence, error) {
	cur, err := s.landmarks.Find(context.Background(), bson.M{"hash": hash})
	if err != nil {
		return nil, errs.IndexError(err)
	}
	defer cur.Close(context.Background())

	var occs []Occurrence
	for cur.Next(context.Background()) {
		var doc mongoLandmark
		if err := cur.Decode(&doc); err != nil {
			return nil, errs.IndexError(err)
		}
		occs = append(occs, Occurrence{SongID: doc.SongID, AnchorTime: doc.AnchorTime})
	}
	return occs, errs.IndexError(cur.Err())
}

func (s *MongoStore) EraseAll() error {
	ctx := context.Background()
	if _, err := s.landmarks.DeleteMany(ctx, bson.M{}); err != nil {
		return errs.IndexError(err)
	}
	if _, err := s.songs.DeleteMany(ctx, bson.M{}); err != nil {
		return errs.IndexError(err)
	}
	return nil
}
