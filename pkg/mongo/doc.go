// Package mongo connects to MongoDB, which backs user notification
// preferences.
//
//	db, err := mongo.NewWithDatabase(ctx, cfg, "")
//	if err != nil { ... }
//	prefs := preferences.NewMongoSource(db.Collection("preferences"))
//
// Healthcheck returns a probe for the /healthz endpoint.
package mongo
