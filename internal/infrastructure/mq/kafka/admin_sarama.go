package kafka

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/IBM/sarama"
)

type TopicAdminConfig struct {
	Brokers           []string
	ClientID          string
	Partitions        int32
	ReplicationFactor int16
	Retention         time.Duration
}

// EnsureTopics creates every missing topic. Existing topics are left untouched.
func EnsureTopics(cfg TopicAdminConfig, topics []string) error {
	if len(cfg.Brokers) == 0 {
		return errors.New("kafka brokers is empty")
	}
	admin, err := sarama.NewClusterAdmin(cfg.Brokers, newSaramaConfig(cfg.ClientID))
	if err != nil {
		return err
	}
	defer admin.Close()

	existing, err := admin.ListTopics()
	if err != nil {
		return err
	}
	for _, topic := range topics {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			return errors.New("kafka topic is empty")
		}
		if _, ok := existing[topic]; ok {
			continue
		}
		if err := admin.CreateTopic(topic, topicDetail(cfg), false); err != nil {
			if errors.Is(err, sarama.ErrTopicAlreadyExists) {
				continue
			}
			return err
		}
	}
	return nil
}

func topicDetail(cfg TopicAdminConfig) *sarama.TopicDetail {
	partitions, replication := cfg.Partitions, cfg.ReplicationFactor
	if partitions <= 0 {
		partitions = 1
	}
	if replication <= 0 {
		replication = 1
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &sarama.TopicDetail{
		NumPartitions:     partitions,
		ReplicationFactor: replication,
		ConfigEntries: map[string]*string{
			"retention.ms": strPtr(strconv.FormatInt(retention.Milliseconds(), 10)),
		},
	}
}

func strPtr(v string) *string {
	s := v
	return &s
}
