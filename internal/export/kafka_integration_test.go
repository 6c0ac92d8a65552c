//go:build integration

package export_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"frota/internal/export"
	"frota/internal/nfe/models"
	"frota/pkg/domain"
	"frota/pkg/testutil/containers"
)

type KafkaSinkSuite struct {
	suite.Suite
	brokers []string
}

func TestKafkaSinkSuite(t *testing.T) {
	suite.Run(t, new(KafkaSinkSuite))
}

func (s *KafkaSinkSuite) SetupSuite() {
	s.brokers = containers.GetManager().GetRedpanda(s.T()).Brokers
}

func (s *KafkaSinkSuite) TestPublishesOneMessagePerRowKeyedByAccessKey() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	topic := "frota.fuel-records." + strings.ReplaceAll(s.T().Name(), "/", "-")

	sink, err := export.NewKafkaSink(s.brokers, topic, export.WithRunID("run-1"))
	s.Require().NoError(err)
	defer sink.Close()
	s.Require().NoError(sink.EnsureTopic(ctx, 1, 1))
	s.Require().NoError(sink.EnsureTopic(ctx, 1, 1), "second create is a no-op")

	rows := []models.Row{
		{AccessKey: domain.AccessKey(strings.Repeat("1", 44)), Station: "deluca",
			Record: models.Record{Date: "30/11/2024", Amount: "425,01", Plate: "ABC-1234", KM: "62876"}},
		{AccessKey: domain.AccessKey(strings.Repeat("2", 44)), Station: "deluca",
			Record: models.Record{Date: "01/12/2024", Amount: "80,5", Plate: "N/A", KM: "N/A"}},
	}
	s.Require().NoError(sink.Write(ctx, rows))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	var got []*kgo.Record
	for len(got) < len(rows) {
		fetches := consumer.PollFetches(ctx)
		s.Require().NoError(ctx.Err())
		fetches.EachRecord(func(r *kgo.Record) {
			got = append(got, r)
		})
	}

	s.Equal(strings.Repeat("1", 44), string(got[0].Key))
	var msg export.RowMessage
	s.Require().NoError(json.Unmarshal(got[0].Value, &msg))
	s.Equal("ABC-1234", msg.Plate)
	s.Equal("run-1", msg.RunID)
	s.Equal(strings.Repeat("2", 44), string(got[1].Key))
}
