package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/d60-Lab/topic-index/internal/model"
	"github.com/d60-Lab/topic-index/internal/service"
)

type stateOp struct {
	use   string
	short string
	pick  func(service.TopicTools) service.TopicOp
}

var stateOps = []stateOp{
	{"pin", "置顶主题", func(t service.TopicTools) service.TopicOp { return t.Pin }},
	{"unpin", "取消置顶", func(t service.TopicTools) service.TopicOp { return t.Unpin }},
	{"expire", "过期主题（立即转入过期域）", func(t service.TopicTools) service.TopicOp { return t.Expire }},
	{"unexpire", "取消过期", func(t service.TopicTools) service.TopicOp { return t.Unexpire }},
	{"lock", "锁定主题", func(t service.TopicTools) service.TopicOp { return t.Lock }},
	{"unlock", "解锁主题", func(t service.TopicTools) service.TopicOp { return t.Unlock }},
	{"delete", "软删除主题", func(t service.TopicTools) service.TopicOp { return t.Delete }},
	{"restore", "恢复已删除的主题", func(t service.TopicTools) service.TopicOp { return t.Restore }},
}

func newStateCmd(op stateOp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   op.use + " <tid>...",
		Short: op.short,
		Args:  cobra.MinimumNArgs(1),
	}
	var at float64
	switch op.use {
	case "pin":
		cmd.Flags().Float64Var(&at, "until", 0, "置顶截止时间（毫秒），0 表示不自动取消")
	case "expire":
		cmd.Flags().Float64Var(&at, "at", 0, "过期时间（毫秒），0 表示立即过期")
	}
	cmd.RunE = withApp(func(cmd *cobra.Command, a *app, args []string) error {
		tids, err := parseIDs(args)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		var topics []*model.Topic
		switch {
		case op.use == "pin":
			topics, err = service.PinMany(ctx, a.tools, tids, at, model.SystemActor)
		case op.use == "expire" && at > 0:
			topics, err = service.ExpireMany(ctx, a.tools, tids, at, model.SystemActor)
		default:
			topics, err = service.ForEach(ctx, tids, model.SystemActor, op.pick(a.tools))
		}
		if err != nil {
			return err
		}
		return printJSON(cmd, topics)
	})
	return cmd
}

func newOrderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "order <tid> <position>",
		Short: "调整置顶主题的位置，0 为最上",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			ids, err := parseIDs(args[:1])
			if err != nil {
				return err
			}
			pos, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || pos < 0 {
				return fmt.Errorf("invalid position %q", args[1])
			}
			if err := a.tools.OrderPinned(cmd.Context(), ids[0], pos, model.SystemActor); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "topic %d moved to position %d\n", ids[0], pos)
			return nil
		}),
	}
}

func newMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <tid> <cid>",
		Short: "迁移主题到另一个分类",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			res, err := a.tools.Move(cmd.Context(), ids[0], ids[1], model.SystemActor)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		}),
	}
}

func newListCmd() *cobra.Command {
	var (
		start, stop int64
		sort        string
		tags        []string
	)
	cmd := &cobra.Command{
		Use:   "list <cid>",
		Short: "按列表顺序输出分类主题（置顶、普通、过期）",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			page, err := a.lister.GetCategoryTopics(cmd.Context(), model.TopicListQuery{
				CID:   ids[0],
				Start: start,
				Stop:  stop,
				Sort:  model.SortMode(sort),
				Tags:  tags,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, t := range page.Topics {
				fmt.Fprintf(out, "%d\t%d\t%s\t%s\n", t.Index, t.TID, flags(t), t.Title)
			}
			return nil
		}),
	}
	cmd.Flags().Int64Var(&start, "start", 0, "起始下标")
	cmd.Flags().Int64Var(&stop, "stop", 19, "结束下标（含），-1 表示到末尾")
	cmd.Flags().StringVar(&sort, "sort", "", "排序方式，缺省使用配置")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "标签过滤，可重复")
	return cmd
}

func flags(t *model.Topic) string {
	s := []byte("----")
	if t.Pinned {
		s[0] = 'P'
	}
	if t.Expire {
		s[1] = 'E'
	}
	if t.Locked {
		s[2] = 'L'
	}
	if t.Deleted {
		s[3] = 'D'
	}
	return string(s)
}

func newCountCmd() *cobra.Command {
	var tags []string
	cmd := &cobra.Command{
		Use:   "count <cid>",
		Short: "分类主题数",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			n, err := a.lister.GetTopicCount(cmd.Context(), model.TopicListQuery{CID: ids[0], Tags: tags})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		}),
	}
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "标签过滤，可重复")
	return cmd
}

func newPublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "发布已到时间的定时主题",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			tids, err := a.poster.PublishDue(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %d topic(s) %v\n", len(tids), tids)
			return nil
		}),
	}
}

func newRecountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recount <cid>...",
		Short: "按普通域重算分类计数",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			cids, err := parseIDs(args)
			if err != nil {
				return err
			}
			out := make([]model.CategoryCounters, 0, len(cids))
			for _, cid := range cids {
				c, err := a.tools.RecountCategory(cmd.Context(), cid)
				if err != nil {
					return fmt.Errorf("recount category %d: %w", cid, err)
				}
				out = append(out, c)
			}
			return printJSON(cmd, out)
		}),
	}
}

func newCategoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "分类管理",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "创建分类",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			c, err := a.deps.Categories.Create(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, c)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "列出分类",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			cats, err := a.deps.Categories.List(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, cats)
		}),
	})
	return cmd
}
