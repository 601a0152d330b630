// Command storage-init creates the board tables and the notifications queue.
package main

import (
	"context"
	"errors"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	log "github.com/sirupsen/logrus"

	"github.com/uramazingdanc/flowboardeai/domain"
	"github.com/uramazingdanc/flowboardeai/gateway"
)

var tableEnv = map[string]string{
	domain.TableTasks:    "TASKS_TABLE",
	domain.TableProjects: "PROJECTS_TABLE",
	domain.TableProfiles: "PROFILES_TABLE",
	domain.TableMembers:  "MEMBERS_TABLE",
}

// tableNames returns the physical table names, honouring the same overrides
// as the service.
func tableNames() []string {
	var names []string
	for table, spec := range gateway.DefaultTables() {
		name := spec.Name
		if v := os.Getenv(tableEnv[table]); v != "" {
			name = v
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("storage init starting")

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	if connStr == "" {
		log.Fatal("missing STORAGE_CONNECTION_STRING")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := createTables(ctx, connStr, tableNames()); err != nil {
		log.Fatalf("create tables: %v", err)
	}
	if err := createQueues(ctx, connStr, []string{os.Getenv("NOTIFICATIONS_QUEUE")}); err != nil {
		log.Fatalf("create queues: %v", err)
	}

	log.Info("storage init complete")
}

func createTables(ctx context.Context, connStr string, names []string) error {
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, nil)
	if err != nil {
		return err
	}
	for _, name := range names {
		if _, err := svc.NewClient(name).CreateTable(ctx, nil); err != nil {
			var respErr *azcore.ResponseError
			if !errors.As(err, &respErr) || respErr.ErrorCode != string(aztables.TableAlreadyExists) {
				return err
			}
		}
		log.WithField("table", name).Debug("table ready")
	}
	return nil
}

func createQueues(ctx context.Context, connStr string, names []string) error {
	for _, name := range names {
		if name == "" {
			continue
		}
		q, err := azqueue.NewQueueClientFromConnectionString(connStr, name, nil)
		if err != nil {
			return err
		}
		if _, err := q.Create(ctx, nil); err != nil {
			var respErr *azcore.ResponseError
			if !errors.As(err, &respErr) || respErr.ErrorCode != "QueueAlreadyExists" {
				return err
			}
		}
		log.WithField("queue", name).Debug("queue ready")
	}
	return nil
}
