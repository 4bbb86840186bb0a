// Package mongo provides MongoDB connection management for the notification
// subsystem.
//
// Configuration is entirely environment-driven, with retry logic and
// connection pool defaults that hold up under typical notification write
// volume without manual tuning.
//
// # Usage
//
//	import (
//		"context"
//
//		"github.com/farmdesk/notify/pkg/mongo"
//	)
//
//	func main() {
//		cfg := mongo.Config{
//			ConnectionURL: "mongodb://localhost:27017",
//		}
//
//		client, err := mongo.New(context.Background(), cfg)
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer client.Disconnect(context.Background())
//
//		db, _ := mongo.NewWithDatabase(context.Background(), cfg, "farmdesk")
//
//		health := mongo.Healthcheck(client)
//		if err := health(context.Background()); err != nil {
//			log.Println("mongo is unavailable:", err)
//		}
//	}
//
// # Error Handling
//
// Connection failures are wrapped in package sentinel errors. Use errors.Is()
// to check for specific failure scenarios.
package mongo
