package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"gitlab.grandhoo.com/rock/rock_pattern/common"
	"gitlab.grandhoo.com/rock/rock_pattern/config"
	"gitlab.grandhoo.com/rock/rock_pattern/dao"
	"gitlab.grandhoo.com/rock/rock_pattern/global_variables"
	"gitlab.grandhoo.com/rock/rock_pattern/logger"
	"gitlab.grandhoo.com/rock/rock_pattern/rds_config"
	"gitlab.grandhoo.com/rock/rock_pattern/request"
	"gitlab.grandhoo.com/rock/rock_pattern/rule_export"
	"gorm.io/gorm"
)

func jobRunningHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger.Debugf("job is running: %v", global_variables.IsJobRunning())
		// 如果有任务正在执行，直接返回
		if !global_variables.TryStartJob(c.FullPath()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": common.ErrJobRunning.Error()})
			return
		}
		defer global_variables.FinishJob()

		c.Next()
	}
}

func main() {
	go func() {
		for i := 8801; i < 9000; i++ {
			err := http.ListenAndServe(":"+strconv.Itoa(i), nil)
			if err != nil {
				fmt.Printf("http.ListenAndServe failed, err:%s\n", err)
			} else {
				fmt.Printf("http.ListenAndServe run on %d\n", i)
				break
			}
		}
	}()

	configPath := flag.String("config", "", "config file, yaml or json")
	rockConfig := flag.String("rock_config", "", "rock config json, overrides the config file")
	csvPath := flag.String("csv", "", "mine this csv and exit instead of serving http")
	labelColumn := flag.String("label", "", "label column of the csv")
	labels := flag.String("labels", "", "comma separated labels to mine, empty for all")
	outDir := flag.String("out", rds_config.OutputPath, "output dir of csv/msgpack/dot files")
	dotLabel := flag.String("dot", "", "export the search graph of this label as dot")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	// 用传入的配置替换自带的配置
	if err = conf.Override(*rockConfig); err != nil {
		panic(err)
	}
	config.All = conf
	fmt.Printf("config file content:%+v\n", *conf)

	l := conf.Logger
	if err = logger.InitLogger(l.Level, conf.Server.Name, l.Path, l.MaxAge, l.RotationTime, l.RotationSize, conf.Server.SentryDsn); err != nil {
		panic(err)
	}
	defer logger.Sync()

	if conf.Db.Dsn != "" {
		if err = dao.InitGorm(conf.Db.Driver, conf.Db.Dsn); err != nil {
			logger.Errorf("init db failed, rules will not be persisted: %v", err)
		}
	}

	if *csvPath != "" {
		req := &request.MineRequest{
			CsvPath:     *csvPath,
			LabelColumn: *labelColumn,
			OutputDir:   *outDir,
			Persist:     dao.Enabled(),
		}
		if *labels != "" {
			req.Labels = strings.Split(*labels, ",")
		}
		if *dotLabel != "" {
			req.DotLabels = []string{*dotLabel}
		}
		if err = mineCsv(req); err != nil {
			logger.Error(err)
			os.Exit(1)
		}
		return
	}

	r := newRouter(conf)
	var port uint32
	var listener net.Listener
	for _, port = range conf.Server.GinPorts {
		listener, err = net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			continue
		}
		listener.Close()

		address := ":" + strconv.Itoa(int(port))
		go r.Run(address)
		break
	}
	if err != nil {
		panic(err)
	}
	logger.Infof("%s serving on %d", conf.Server.Name, port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("shutdown %s server ...", conf.Server.Name)
}

func mineCsv(req *request.MineRequest) error {
	resp, err := runMine(context.Background(), config.All, req)
	if err != nil {
		return err
	}
	fmt.Print(rule_export.RenderTable(resp.RuleSets))
	for label, e := range resp.Failed {
		fmt.Printf("label %s failed: %s\n", label, e)
	}
	for _, file := range resp.Files {
		fmt.Println("write", file)
	}
	fmt.Printf("rules: %d, search: %s, select: %s, total: %dms\n", resp.RuleCount, resp.SearchTime, resp.SelectTime, resp.TotalTime)
	return nil
}

func newRouter(conf *config.AllConfig) *gin.Engine {
	r := gin.Default()

	r.GET("/health", health)

	r.POST("/mine", jobRunningHandler(), mine(conf))

	r.GET("/tasks", listTasks)

	r.GET("/tasks/:id/rules", taskRules)

	r.DELETE("/tasks/:id", deleteTask)

	return r
}

func health(c *gin.Context) {
	resp := gin.H{"success": true, "db": dao.Enabled()}
	if job, ok := global_variables.CurrentJob(); ok {
		resp["job"] = job.Name
		resp["jobTime"] = time.Since(job.StartTime).String()
	}
	c.JSON(http.StatusOK, resp)
}

func mine(conf *config.AllConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req request.MineRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			logger.Errorf("mine request invalid: %v", err)
			return
		}
		logger.Infof("mine request %+v", req)
		resp, err := runMine(c.Request.Context(), conf, &req)
		if err != nil {
			c.JSON(errorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    resp,
		})
	}
}

// errorStatus 输入问题返回 400, 其他 500
func errorStatus(err error) int {
	for _, e := range []error{common.ErrOpenCsv, common.ErrReadCsv, common.ErrLabelColumn, common.ErrParseValue,
		common.ErrDerivedColumn, common.ErrEmptyDataset, common.ErrInvalidParams} {
		if errors.Is(err, e) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

func listTasks(c *gin.Context) {
	if !dao.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "db is not configured"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	tasks, err := dao.ListPatternTasks(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": tasks})
}

// taskRules format=text 时返回表格
func taskRules(c *gin.Context) {
	if !dao.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "db is not configured"})
		return
	}
	taskId, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}
	task, err := dao.GetPatternTaskById(taskId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("task %d not found", taskId)})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	var rules []dao.PatternRule
	if label := c.Query("label"); label != "" {
		rules, err = dao.GetPatternRulesByLabel(taskId, label)
	} else {
		rules, err = dao.GetPatternRulesByTaskId(taskId)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	views, err := rule_export.FromDbRules(rules)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if c.Query("format") == "text" {
		c.String(http.StatusOK, rule_export.RenderTable(views))
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task, "data": views})
}

func deleteTask(c *gin.Context) {
	if !dao.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "db is not configured"})
		return
	}
	taskId, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}
	deleted, err := dao.DeletePatternTask(taskId)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("task %d not found", taskId)})
		return
	}
	if err = dao.DeletePatternRulesByTaskId(taskId); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
