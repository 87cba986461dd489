// Package database - Handles all interaction with ArangoDB
package database

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/connection"
	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger = InitLogger() // setup the logger

// DBConnection is the structure that defines the database engine and collections
type DBConnection struct {
	Collections map[string]arangodb.Collection
	Database    arangodb.Database
	Client      arangodb.Client
}

// Config carries the connection parameters for the ArangoDB deployment.
type Config struct {
	URL  string
	User string
	Pass string
}

// indexConfig holds a single-field persistent index definition
type indexConfig struct {
	Collection string
	IdxName    string
	IdxField   string
	Unique     bool
	Sparse     bool
}

// InitLogger sets up the Zap Logger to log to the console in a human readable format
func InitLogger() *zap.Logger {
	prodConfig := zap.NewProductionConfig()
	prodConfig.Encoding = "console"
	prodConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	prodConfig.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	logger, _ := prodConfig.Build()
	return logger
}

func dbConnectionConfig(endpoint connection.Endpoint, dbuser string, dbpass string) connection.HttpConfiguration {
	return connection.HttpConfiguration{
		Authentication: connection.NewBasicAuth(dbuser, dbpass),
		Endpoint:       endpoint,
		ContentType:    connection.ApplicationJSON,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // #nosec G402
			},
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 90 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// InitializeDatabase connects to the db engine and creates the database,
// collections, and indexes used by the collection pipeline.
func InitializeDatabase(cfg Config) DBConnection {
	const initialInterval = 10 * time.Second
	const maxInterval = 2 * time.Minute
	const databaseName = "kirinvulndb"

	ctx := context.Background()

	var db arangodb.Database
	var client arangodb.Client

	//
	// Database connection with backoff retry
	//

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialInterval
	bo.MaxInterval = maxInterval
	bo.MaxElapsedTime = 0 // retry indefinitely

	err := backoff.RetryNotify(func() error {
		endpoint := connection.NewRoundRobinEndpoints([]string{cfg.URL})
		conn := connection.NewHttpConnection(dbConnectionConfig(endpoint, cfg.User, cfg.Pass))

		client = arangodb.NewClient(conn)

		versionInfo, err := client.Version(context.Background())
		if err != nil {
			return err
		}

		logger.Sugar().Infof("Database has version '%s' and license '%s'", versionInfo.Version, versionInfo.License)
		return nil

	}, bo, func(err error, _ time.Duration) {
		logger.Sugar().Warnf("Retrying connection to ArangoDB: %v", err)
	})

	if err != nil {
		logger.Sugar().Fatalf("Backoff Error %v", err)
	}

	//
	// Database creation
	//

	exists := false
	dblist, _ := client.Databases(ctx)

	for _, dbinfo := range dblist {
		if dbinfo.Name() == databaseName {
			exists = true
			break
		}
	}

	if exists {
		var options arangodb.GetDatabaseOptions
		if db, err = client.GetDatabase(ctx, databaseName, &options); err != nil {
			logger.Sugar().Fatalf("Failed to get Database: %v", err)
		}
	} else {
		if db, err = client.CreateDatabase(ctx, databaseName, nil); err != nil {
			logger.Sugar().Fatalf("Failed to create Database: %v", err)
		}
	}

	//
	// Collection creation for document storage
	//

	collections := make(map[string]arangodb.Collection)
	collectionNames := []string{"vulnerability", "tool", "alert", "collection_state"}

	for _, collectionName := range collectionNames {
		var col arangodb.Collection

		exists, _ = db.CollectionExists(ctx, collectionName)
		if exists {
			var options arangodb.GetCollectionOptions
			if col, err = db.GetCollection(ctx, collectionName, &options); err != nil {
				logger.Sugar().Fatalf("Failed to use collection: %v", err)
			}
		} else {
			if col, err = db.CreateCollection(ctx, collectionName, nil); err != nil {
				logger.Sugar().Fatalf("Failed to create collection: %v", err)
			}
		}

		collections[collectionName] = col
	}

	//
	// Index creation
	//

	idxList := []indexConfig{
		// Vulnerability collection indexes
		// cve_id is unique-sparse: records without a CVE assignment skip the
		// index, records with one can never duplicate.
		{Collection: "vulnerability", IdxName: "vuln_cve_id_unique", IdxField: "cve_id", Unique: true, Sparse: true},
		{Collection: "vulnerability", IdxName: "vuln_id_unique", IdxField: "vulnerability_id", Unique: true},
		{Collection: "vulnerability", IdxName: "vuln_severity", IdxField: "severity"},
		{Collection: "vulnerability", IdxName: "vuln_updated_at", IdxField: "updated_at"},
		{Collection: "vulnerability", IdxName: "vuln_discovery_date", IdxField: "discovery_date"},
		{Collection: "vulnerability", IdxName: "vuln_affected_tools", IdxField: "affected_tools[*]"},
		{Collection: "vulnerability", IdxName: "vuln_patch_status", IdxField: "patch_status"},

		// Tool collection indexes
		{Collection: "tool", IdxName: "tool_name_unique", IdxField: "name", Unique: true},

		// Alert collection indexes, supporting recent-alert queries and
		// the dispatcher's rolling rate-limit window
		{Collection: "alert", IdxName: "alert_id_unique", IdxField: "alert_id", Unique: true},
		{Collection: "alert", IdxName: "alert_vuln_id", IdxField: "vulnerability_id"},
		{Collection: "alert", IdxName: "alert_status", IdxField: "status"},
		{Collection: "alert", IdxName: "alert_created_at", IdxField: "created_at"},

		// Collector checkpoint per source
		{Collection: "collection_state", IdxName: "state_source_unique", IdxField: "source", Unique: true},
	}

	for _, idx := range idxList {
		found := false

		if indexes, err := collections[idx.Collection].Indexes(ctx); err == nil {
			for _, index := range indexes {
				if idx.IdxName == index.Name {
					found = true
					break
				}
			}
		}

		if !found {
			unique := idx.Unique
			sparse := idx.Sparse
			indexOptions := arangodb.CreatePersistentIndexOptions{
				Unique: &unique,
				Sparse: &sparse,
				Name:   idx.IdxName,
			}

			_, _, err = collections[idx.Collection].EnsurePersistentIndex(ctx, []string{idx.IdxField}, &indexOptions)
			if err != nil {
				logger.Sugar().Fatalln("Error creating index:", err)
			} else {
				logger.Sugar().Infof("Created index: %s on %s.%s", idx.IdxName, idx.Collection, idx.IdxField)
			}
		}
	}

	// Composite index for the dispatcher's rate-limit lookup by
	// vulnerability_id + created_at
	alertWindowIdx := "alert_vuln_window"
	found := false
	if indexes, err := collections["alert"].Indexes(ctx); err == nil {
		for _, index := range indexes {
			if alertWindowIdx == index.Name {
				found = true
				break
			}
		}
	}
	if !found {
		False := false
		compositeIdxOptions := arangodb.CreatePersistentIndexOptions{
			Unique: &False,
			Sparse: &False,
			Name:   alertWindowIdx,
		}
		_, _, err = collections["alert"].EnsurePersistentIndex(ctx, []string{"vulnerability_id", "created_at"}, &compositeIdxOptions)
		if err != nil {
			logger.Sugar().Fatalln("Error creating composite index:", err)
		} else {
			logger.Sugar().Infof("Created composite index: %s on alert", alertWindowIdx)
		}
	}

	logger.Sugar().Infof("Database initialization complete")

	return DBConnection{
		Database:    db,
		Collections: collections,
		Client:      client,
	}
}
