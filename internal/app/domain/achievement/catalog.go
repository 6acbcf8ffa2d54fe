package achievement

// Catalog is the fixed set of achievements every user can earn.
func Catalog() []Achievement {
	return []Achievement{
		{
			Name:          "初试身手",
			NameEn:        "First Steps",
			Description:   "完成你的第一次训练",
			DescriptionEn: "Complete your first training session",
			Icon:          "Play",
			Category:      CategorySessionCount,
			TargetValue:   1,
		},
		{
			Name:          "坚持一周",
			NameEn:        "7-Day Streak",
			Description:   "连续训练7天",
			DescriptionEn: "Train for 7 consecutive days",
			Icon:          "Flame",
			Category:      CategoryStreakDays,
			TargetValue:   7,
		},
		{
			Name:          "百次达人",
			NameEn:        "100 Sessions",
			Description:   "完成100次训练",
			DescriptionEn: "Complete 100 training sessions",
			Icon:          "Trophy",
			Category:      CategorySessionCount,
			TargetValue:   100,
		},
		{
			Name:          "千次专家",
			NameEn:        "1000 Sessions",
			Description:   "完成1000次训练",
			DescriptionEn: "Complete 1000 training sessions",
			Icon:          "Star",
			Category:      CategorySessionCount,
			TargetValue:   1000,
		},
		{
			Name:          "马拉松选手",
			NameEn:        "Marathon Trainer",
			Description:   "累计训练时间达到10小时",
			DescriptionEn: "Accumulate 10 hours of training",
			Icon:          "Clock",
			Category:      CategoryTrainingTime,
			TargetValue:   10,
		},
		{
			Name:          "完美一月",
			NameEn:        "30-Day Streak",
			Description:   "连续训练30天",
			DescriptionEn: "Train for 30 consecutive days",
			Icon:          "Target",
			Category:      CategoryStreakDays,
			TargetValue:   30,
		},
	}
}
