package db

import "reward-polls/modules/config"

type dbConfig struct {
	DbURI  string
	DbName string
}

type dbConfigStruct struct {
	*config.Config[dbConfig]
}

type DbConfig = *dbConfigStruct

func NewDbConfig(dataDir ...string) DbConfig {
	var dataDirPtr *string
	if len(dataDir) > 0 {
		dataDirPtr = &dataDir[0]
	}

	return &dbConfigStruct{config.New(dbConfig{
		DbURI:  "mongodb://localhost:27017",
		DbName: "reward-polls",
	}, dataDirPtr)}
}

func (dc *dbConfigStruct) SetDbURI(uri string) error {
	if uri == "" {
		return nil
	}
	return dc.Update(func(c *dbConfig) {
		c.DbURI = uri
	})
}

func (dc *dbConfigStruct) SetDbName(name string) error {
	if name == "" {
		return nil
	}
	return dc.Update(func(c *dbConfig) {
		c.DbName = name
	})
}
