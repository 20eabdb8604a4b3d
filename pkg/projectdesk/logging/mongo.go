package logging

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/mgo/v3"
)

const requestLogCollection = "request_logs"

// MongoSink stores request records in MongoDB
type MongoSink struct {
	session *mgo.Session
	dbName  string
}

// DialMongo connects to uri and writes into database dbName
func DialMongo(uri, dbName string) (*MongoSink, error) {
	info, err := mgo.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("parse mongo uri: %w", err)
	}
	info.Timeout = 10 * time.Second
	session, err := mgo.DialWithInfo(info)
	if err != nil {
		return nil, fmt.Errorf("dial mongo: %w", err)
	}
	session.SetSafe(&mgo.Safe{})
	return &MongoSink{session: session, dbName: dbName}, nil
}

func (s *MongoSink) Write(_ context.Context, r Record) error {
	session := s.session.Copy()
	defer session.Close()
	return session.DB(s.dbName).C(requestLogCollection).Insert(r)
}

func (s *MongoSink) Close() error {
	s.session.Close()
	return nil
}
