// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/globaltrotter/globaltrotter/internal/app/store/audit"
	"github.com/globaltrotter/globaltrotter/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	// helper: ensure collection exists (with truthful logging) and then validator (if provided)
	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			// DocumentDB or other deployments may not support collMod/validators.
			if unsupported(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure("users", usersSchema())
	ensure("trips", tripsSchema())

	ensure("audit_events", auditSchema())

	// TTL-managed; no validator.
	ensure("oauth_states", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

// commandErr reports whether err is a server command error with one of the
// given codes, or whose message mentions one of the phrases. Some managed
// deployments return only the message.
func commandErr(err error, codes []int32, phrases ...string) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		for _, c := range codes {
			if ce.Code == c {
				return true
			}
		}
	}
	msg := strings.ToLower(err.Error())
	for _, p := range phrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func isNamespaceExistsErr(err error) bool {
	return commandErr(err, []int32{48}, "already exists", "namespace exists")
}

// unsupported covers DocumentDB and other servers without collMod validators.
func unsupported(err error) bool {
	return commandErr(err, []int32{59, 115}, "no such command", "not implemented", "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"username", "email", "auth_provider", "is_verified"},
			"properties": bson.M{
				"username":      bson.M{"bsonType": "string", "minLength": 1, "pattern": "^[a-z0-9_]+$"},
				"email":         bson.M{"bsonType": "string", "minLength": 3, "pattern": "^\\S+@\\S+\\.\\S+$"},
				"phone":         bson.M{"bsonType": "string", "pattern": "^[\\d\\s\\+\\-\\(\\)]+$"},
				"auth_provider": bson.M{"enum": bson.A{models.AuthProviderEmail, models.AuthProviderExternal}},
				"external_id":   bson.M{"bsonType": "string"},
				"password_hash": bson.M{"bsonType": "string"},
				"is_verified":   bson.M{"bsonType": "bool"},
				"location": bson.M{
					"bsonType": "object",
					"properties": bson.M{
						"city":    bson.M{"bsonType": "string", "maxLength": 100},
						"country": bson.M{"bsonType": "string", "maxLength": 100},
					},
				},
				"additional_info":     bson.M{"bsonType": "string", "maxLength": 500},
				"profile_picture":     bson.M{"bsonType": "string"},
				"verify_token":        bson.M{"bsonType": "string"},
				"verify_token_expiry": bson.M{"bsonType": "date"},
				"created_at":          bson.M{"bsonType": "date"},
				"updated_at":          bson.M{"bsonType": "date"},
			},
		},
	}
}

func tripsSchema() bson.M {
	section := bson.M{
		"bsonType": "object",
		"required": bson.A{"name", "budget", "days_to_stay", "date_range"},
		"properties": bson.M{
			"name":         bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
			"budget":       bson.M{"bsonType": "number", "minimum": 0},
			"days_to_stay": bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 1},
			"date_range":   bson.M{"bsonType": "string", "minLength": 1},
			"is_editable":  bson.M{"bsonType": "bool"},
		},
	}
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"destination", "start_date", "end_date", "sections", "created_at"},
			"properties": bson.M{
				"destination":  bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"start_date":   bson.M{"bsonType": "date"},
				"end_date":     bson.M{"bsonType": "date"},
				"total_days":   bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
				"total_budget": bson.M{"bsonType": "number", "minimum": 0},
				"user_email":   bson.M{"bsonType": "string"},
				"sections":     bson.M{"bsonType": "array", "items": section},
				"created_at":   bson.M{"bsonType": "date"},
				"updated_at":   bson.M{"bsonType": "date"},
			},
		},
	}
}

func auditSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"timestamp", "category", "event_type", "success"},
			"properties": bson.M{
				"timestamp":  bson.M{"bsonType": "date"},
				"category":   bson.M{"enum": bson.A{audit.CategoryAuth, audit.CategoryTrips}},
				"event_type": bson.M{"bsonType": "string", "minLength": 1},
				"user_id":    bson.M{"bsonType": "objectId"},
				"email":      bson.M{"bsonType": "string"},
				"ip":         bson.M{"bsonType": "string"},
				"success":    bson.M{"bsonType": "bool"},
				"details":    bson.M{"bsonType": "object"},
			},
		},
	}
}
