package db

import (
	"fmt"

	"github.com/ca-risken/common/pkg/logging"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jinzhu/gorm"
)

type Config struct {
	MasterHost     string `split_words:"true" required:"true"`
	MasterUser     string `split_words:"true" required:"true"`
	MasterPassword string `split_words:"true" required:"true"`
	SlaveHost      string `split_words:"true"`
	SlaveUser      string `split_words:"true"`
	SlavePassword  string `split_words:"true"`

	Schema  string `required:"true"`
	Port    int    `required:"true"`
	LogMode bool   `split_words:"true" default:"false"`
}

// Client holds a master connection for writes and a slave connection for
// reads. When no slave is configured the master serves both.
type Client struct {
	MasterDB *gorm.DB
	SlaveDB  *gorm.DB
	logger   logging.Logger
}

func NewClient(conf *Config, l logging.Logger) (*Client, error) {
	master, err := initDB(conf, true)
	if err != nil {
		return nil, err
	}
	slave := master
	if conf.SlaveHost != "" {
		slave, err = initDB(conf, false)
		if err != nil {
			return nil, err
		}
	}
	return &Client{
		MasterDB: master,
		SlaveDB:  slave,
		logger:   l,
	}, nil
}

func initDB(conf *Config, isMaster bool) (*gorm.DB, error) {
	var user, pass, host string
	if isMaster {
		user = conf.MasterUser
		pass = conf.MasterPassword
		host = conf.MasterHost
	} else {
		user = conf.SlaveUser
		pass = conf.SlavePassword
		host = conf.SlaveHost
	}

	db, err := gorm.Open("mysql",
		fmt.Sprintf("%s:%s@tcp([%s]:%d)/%s?charset=utf8mb4&interpolateParams=true&parseTime=true&loc=Local",
			user, pass, host, conf.Port, conf.Schema))
	if err != nil {
		return nil, fmt.Errorf("failed to open DB, isMaster=%t, err=%w", isMaster, err)
	}
	db.LogMode(conf.LogMode)
	db.SingularTable(true) // `AnalysisSession`'s table name will be `analysis_session`
	return db, nil
}
